package lambda

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/blitznow/ridertraining/internal/middleware"
)

// Adapter はプロキシイベントをhttp.Requestに変換してルーターに渡す。
type Adapter struct {
	handler       http.Handler
	allowedOrigin string
	logger        *slog.Logger
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
// allowedOriginはルーターを通らないエラー応答に付けるCORSオリジン。
func NewAdapter(handler http.Handler, allowedOrigin string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &Adapter{handler: handler, allowedOrigin: allowedOrigin, logger: logger}
}

// Start はLambdaランタイムからのイベント受信を開始する。戻らない。
func (a *Adapter) Start() {
	awslambda.Start(a.Handle)
}

// Handle は1件のプロキシイベントを処理する。
// 失敗も全てHTTPレスポンスとして返すため、errorは常にnil。
func (a *Adapter) Handle(ctx context.Context, ev ProxyEvent) (events.APIGatewayProxyResponse, error) {
	req, err := NewRequest(ctx, ev)
	if err != nil {
		a.logger.WarnContext(ctx, "プロキシイベントの変換に失敗しました",
			slog.String("path", ev.Path),
			slog.String("error", err.Error()),
		)
		return errorResponse(a.allowedOrigin, http.StatusInternalServerError, err.Error()), nil
	}

	w := newResponseWriter()
	a.handler.ServeHTTP(w, req)
	return w.proxyResponse(), nil
}

// NewRequest はプロキシイベントからhttp.Requestを組み立てる。
func NewRequest(ctx context.Context, ev ProxyEvent) (*http.Request, error) {
	method := ev.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	path := ev.Path
	if path == "" {
		path = "/"
	}

	u := &url.URL{Path: path, RawQuery: buildQuery(ev).Encode()}

	body, err := ev.Body.Bytes(ev.IsBase64Encoded)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range ev.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range ev.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get(middleware.RequestIDHeader) == "" && ev.RequestContext.RequestID != "" {
		req.Header.Set(middleware.RequestIDHeader, ev.RequestContext.RequestID)
	}
	if ip := ev.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip + ":0"
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}

	return req, nil
}

// buildQuery はmultiValueQueryStringParametersを優先してクエリを組み立てる。
func buildQuery(ev ProxyEvent) url.Values {
	q := url.Values{}
	for k, vs := range ev.MultiValueQueryStringParameters {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	for k, v := range ev.QueryStringParameters {
		if _, ok := q[k]; !ok {
			q.Set(k, v)
		}
	}
	return q
}

// responseWriter はルーターの出力をプロキシレスポンスとして蓄積する。
type responseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: http.Header{}}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *responseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *responseWriter) proxyResponse() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	headers := make(map[string]string, len(w.header))
	for k, vs := range w.header {
		if len(vs) > 0 {
			headers[k] = strings.Join(vs, ",")
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       w.body.String(),
	}
}

// errorResponse はルーターに渡す前に失敗した場合のレスポンスを返す。
// ルーターを通らないためCORSヘッダーはここで付ける。
func errorResponse(allowedOrigin string, status int, message string) events.APIGatewayProxyResponse {
	w := newResponseWriter()
	middleware.SetCORSHeaders(w.Header(), allowedOrigin)
	middleware.WriteError(w, status, message)
	return w.proxyResponse()
}
