// Package supabase はPostgREST互換のテーブルストア（Supabase）へのクライアントと、
// それを使った進捗・チュートリアルストアの実装を提供する。
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/blitznow/ridertraining/internal/metrics"
	"github.com/blitznow/ridertraining/internal/repository"
)

const (
	// backendName はメトリクスとログに使用するバックエンド名。
	backendName = "supabase"
	// restPath はPostgRESTのベースパス。
	restPath = "/rest/v1/"
	// maxRetryDelay は再試行間隔の上限。
	maxRetryDelay = 2 * time.Second
	// maxResponseSize はレスポンスボディの読み取り上限（4MB）。
	maxResponseSize = 4 << 20
)

// RetryClass はHTTPステータスに基づく再試行可否の分類。
type RetryClass int

const (
	// RetryClassOK は成功（2xx）。
	RetryClassOK RetryClass = iota
	// RetryClassRetry は一時的な障害で再試行可能（429/5xx）。
	RetryClassRetry
	// RetryClassFail は再試行しても結果が変わらない失敗（その他の4xx）。
	RetryClassFail
)

// ClassifyHTTPStatus はHTTPステータスコードを再試行可否に分類する。
func ClassifyHTTPStatus(statusCode int) RetryClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return RetryClassOK
	case statusCode == http.StatusTooManyRequests:
		return RetryClassRetry
	case statusCode >= 500:
		return RetryClassRetry
	default:
		return RetryClassFail
	}
}

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// attemptは0始まり。base, 2*base, 4*base... と増加し、maxRetryDelayで頭打ちになる。
func CalculateBackoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

// StatusError はテーブルストアが2xx以外を返したことを表す。
type StatusError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("table store returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("table store returned %d", e.StatusCode)
}

// Options はClientの任意設定。
type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	Metrics        metrics.MetricsCollector
	Logger         *slog.Logger
}

// Client はPostgRESTのテーブルAPIを呼び出すクライアント。
// 一時的な障害は上限付きで再試行し、連続した接続障害ではサーキットブレーカーを開く。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	maxRetries int
	baseDelay  time.Duration
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient はClientを生成する。
// projectURLは "https://<project>.supabase.co" 形式で、検証済みであること。
func NewClient(projectURL, apiKey string, httpClient *http.Client, opts Options) *Client {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Client{
		baseURL:    strings.TrimRight(projectURL, "/") + restPath,
		apiKey:     apiKey,
		httpClient: httpClient,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		sleep:      sleepContext,
	}

	c.metrics.SetBreakerState(backendName, false)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        backendName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 接続障害だけを失敗として数える。4xxは呼び出し側の問題なので回路を開かない
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, repository.ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("サーキットブレーカーの状態が変化しました",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			c.metrics.SetBreakerState(name, to == gobreaker.StateOpen)
		},
	})

	return c
}

// request は1回のテーブルAPI呼び出しの内容。
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer string
	// idempotent は同じリクエストを再送しても結果が変わらないこと（on_conflict付きUPSERTなど）を表す。
	// GETは常に再送可能として扱う。
	idempotent bool
}

// retryable は一時的な障害のあとに再送してよいかを返す。
// 単純なINSERTは上流でコミット済みの可能性があるため再送しない。
func (r request) retryable() bool {
	return r.method == http.MethodGet || r.idempotent
}

// do はリクエストを送信し、2xxのレスポンスボディを返す。
// operationはメトリクスのラベルに使用する。
func (c *Client) do(ctx context.Context, operation string, req request) ([]byte, error) {
	start := time.Now()

	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, operation, req, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w: %w", operation, repository.ErrCircuitOpen, repository.ErrUnavailable)
	}

	c.metrics.RecordStoreCall(backendName, operation, time.Since(start), err)
	return body, err
}

// doWithRetry は一時的な障害の場合にmaxRetries回まで再試行する。
// 再送できないリクエストは1回だけ送信し、一時的な障害はErrUnavailableとして返す。
func (c *Client) doWithRetry(ctx context.Context, operation string, req request, payload []byte) ([]byte, error) {
	maxRetries := c.maxRetries
	if !req.retryable() {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.baseDelay, attempt-1)
			c.metrics.RecordStoreRetry(backendName)
			c.logger.Debug("テーブルストア呼び出しを再試行します",
				slog.String("operation", operation),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%s: %w: %w", operation, repository.ErrUnavailable, err)
			}
		}

		body, retry, err := c.send(ctx, req, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
	}
	return nil, fmt.Errorf("%s: %w: %w", operation, repository.ErrUnavailable, lastErr)
}

// send は1回のHTTPリクエストを送信する。
// 2番目の戻り値は再試行すべきかどうか。
func (c *Client) send(ctx context.Context, req request, payload []byte) ([]byte, bool, error) {
	endpoint := c.baseURL + req.table
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, bodyReader)
	if err != nil {
		return nil, false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// 呼び出し元のキャンセルは再試行しない
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w: %w", repository.ErrUnavailable, err)
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, true, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case RetryClassOK:
		return body, false, nil
	case RetryClassRetry:
		return nil, true, newStatusError(resp.StatusCode, body)
	default:
		return nil, false, newStatusError(resp.StatusCode, body)
	}
}

// isUniqueViolation はPostgRESTが一意制約違反（409または23505）を返したかどうかを判定する。
func isUniqueViolation(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusConflict || se.Code == "23505"
}

func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{}
	// PostgRESTのエラーボディ {"code","message",...} を読めなければステータスのみ
	_ = json.Unmarshal(body, se)
	se.StatusCode = status
	return se
}

// sleepContext はctxがキャンセルされるまで最大d待機する。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ping はテーブルAPIへの疎通を確認する。/healthから使用する。
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", request{
		method: http.MethodGet,
		table:  "tutorials",
		query:  url.Values{"select": {"id"}, "limit": {"1"}},
	})
	return err
}
