// Package lambda はAPI Gatewayのプロキシイベントをhttp.Handlerに橋渡しする。
package lambda

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
)

// Body はプロキシイベントのbody。
// API Gateway経由ではJSON文字列、コンソールや直接呼び出しではオブジェクトのまま届くため両方を受け付ける。
type Body struct {
	raw      []byte
	isString bool
}

// UnmarshalJSON は文字列・オブジェクト・nullのいずれも受け付ける。
func (b *Body) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Body{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Body{raw: []byte(s), isString: true}
		return nil
	}
	*b = Body{raw: append([]byte(nil), data...)}
	return nil
}

// MarshalJSON は受け取った形のままbodyを出力する。
func (b Body) MarshalJSON() ([]byte, error) {
	if b.raw == nil {
		return []byte("null"), nil
	}
	if b.isString {
		return json.Marshal(string(b.raw))
	}
	return b.raw, nil
}

// Bytes はHTTPリクエストボディとして渡すバイト列を返す。
// 文字列で届いたbodyはisBase64Encodedならデコードする。
func (b Body) Bytes(isBase64Encoded bool) ([]byte, error) {
	if !b.isString || !isBase64Encoded {
		return b.raw, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(b.raw))
	if err != nil {
		return nil, fmt.Errorf("base64エンコードされたbodyのデコードに失敗しました: %w", err)
	}
	return decoded, nil
}

// NewStringBody は文字列bodyを生成する。
func NewStringBody(s string) Body {
	return Body{raw: []byte(s), isString: true}
}

// ProxyEvent はAPI Gateway（REST API）のLambdaプロキシ統合イベント。
// bodyの型以外はevents.APIGatewayProxyRequestと同じ。
type ProxyEvent struct {
	Resource                        string                               `json:"resource"`
	Path                            string                               `json:"path"`
	HTTPMethod                      string                               `json:"httpMethod"`
	Headers                         map[string]string                    `json:"headers"`
	MultiValueHeaders               map[string][]string                  `json:"multiValueHeaders"`
	QueryStringParameters           map[string]string                    `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string                  `json:"multiValueQueryStringParameters"`
	PathParameters                  map[string]string                    `json:"pathParameters"`
	RequestContext                  events.APIGatewayProxyRequestContext `json:"requestContext"`
	Body                            Body                                 `json:"body"`
	IsBase64Encoded                 bool                                 `json:"isBase64Encoded"`
}
