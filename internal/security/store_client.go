// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// NewStoreClient はテーブルストア呼び出し用のHTTPクライアントを生成する。
// safeurlによりhttpsの443番ポート以外への接続と、
// プライベートIP・ループバック・リンクローカル・メタデータIPへの接続を拒否する。
// DNS解決後のIPアドレスもDialerのControlフックで検証される。
func NewStoreClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}
