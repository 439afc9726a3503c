package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend は進捗・チュートリアルの保存先の種別。
type StoreBackend string

const (
	// StoreBackendSupabase はPostgREST互換のテーブルストア（URL + APIキー）。
	StoreBackendSupabase StoreBackend = "supabase"
	// StoreBackendPostgres はPostgreSQLへの直接接続。
	StoreBackendPostgres StoreBackend = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Rider DB (read replica)
	DBHost           string
	DBName           string
	DBUser           string
	DBPassword       string
	DBPort           int
	DBSSLMode        string
	DBSchema         string
	DBConnectTimeout time.Duration
	DBQueryTimeout   time.Duration

	// Store
	StoreBackend        StoreBackend
	SupabaseURL         string
	SupabaseKey         string
	StoreDomainSuffix   string
	StoreDatabaseURL    string
	StoreTimeout        time.Duration
	StoreMaxRetries     int
	StoreRetryBaseDelay time.Duration

	// DegradedMode が有効な場合、読み取り系はバックエンド障害時にフィクスチャで応答する。
	DegradedMode bool

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string

	// Rate Limit
	RateLimitPerMinute int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	required := func(key string, dst *string) {
		*dst = os.Getenv(key)
		if *dst == "" {
			missing = append(missing, key)
		}
	}

	required("DB_HOST", &cfg.DBHost)
	required("DB_NAME", &cfg.DBName)
	required("DB_USER", &cfg.DBUser)
	required("DB_PASSWORD", &cfg.DBPassword)

	cfg.StoreBackend = StoreBackend(strings.ToLower(getEnvString("STORE_BACKEND", string(StoreBackendSupabase))))
	switch cfg.StoreBackend {
	case StoreBackendSupabase:
		required("SUPABASE_URL", &cfg.SupabaseURL)
		required("SUPABASE_KEY", &cfg.SupabaseKey)
		// migrateサブコマンド用。テーブルストアの実体のPostgreSQLを指す
		cfg.StoreDatabaseURL = os.Getenv("STORE_DATABASE_URL")
	case StoreBackendPostgres:
		required("STORE_DATABASE_URL", &cfg.StoreDatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q (allowed: supabase, postgres)", cfg.StoreBackend)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBPort = getEnvInt("DB_PORT", 5432)
	cfg.DBSSLMode = getEnvString("DB_SSLMODE", "require")
	cfg.DBSchema = getEnvString("DB_SCHEMA", "application_db")
	cfg.DBConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second)
	cfg.DBQueryTimeout = getEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second)
	cfg.StoreDomainSuffix = getEnvString("STORE_DOMAIN_SUFFIX", ".supabase.co")
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 10*time.Second)
	cfg.StoreMaxRetries = getEnvInt("STORE_MAX_RETRIES", 2)
	cfg.StoreRetryBaseDelay = getEnvDuration("STORE_RETRY_BASE_DELAY", 200*time.Millisecond)
	cfg.DegradedMode = getEnvBool("DEGRADED_MODE", true)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 600)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.StoreBackend == StoreBackendSupabase {
		if err := ValidateStoreURL(cfg.SupabaseURL, cfg.StoreDomainSuffix); err != nil {
			return nil, fmt.Errorf("invalid SUPABASE_URL: %w", err)
		}
		cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")
	}

	return cfg, nil
}

// ValidateStoreURL はテーブルストアのURLがプロバイダドメイン配下のHTTPSエンドポイントであることを検証する。
func ValidateStoreURL(rawURL, domainSuffix string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("scheme must be https, got %q", u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("URL must not contain credentials")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("URL must not contain a query or fragment")
	}
	host := strings.ToLower(u.Hostname())
	suffix := strings.ToLower(domainSuffix)
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if suffix != "" && (!strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".")) {
		return fmt.Errorf("host %q is not under %q", host, suffix)
	}
	return nil
}

// RiderDatabaseURL はライダーDB（リードレプリカ）への接続URLを組み立てる。
func (c *Config) RiderDatabaseURL() string {
	q := url.Values{}
	q.Set("sslmode", c.DBSSLMode)
	if secs := int(c.DBConnectTimeout / time.Second); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
