package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	CORS       CORSConfig       `yaml:"cors"`
	Import     ImportConfig     `yaml:"import"`
	WordList   WordListConfig   `yaml:"wordlist"`
	PDF        PDFConfig        `yaml:"pdf"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// DatabaseConfig holds store connection settings.
// Driver is "postgres" or "sqlite"; for sqlite the DSN is a file path.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"             env:"DATABASE_DRIVER"             env-default:"postgres"`
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"true"`
}

// AuthConfig holds bearer token validation settings.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"AUTH_JWT_ISSUER"       env-default:"lexiflow"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"15m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// ImportConfig holds upload handling settings.
type ImportConfig struct {
	TempDir            string `yaml:"temp_dir"              env:"IMPORT_TEMP_DIR"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"      env:"IMPORT_MAX_UPLOAD_BYTES"      env-default:"20971520"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" env:"IMPORT_RATE_LIMIT_PER_MINUTE" env-default:"10"`
	DefaultMode        string `yaml:"default_mode"          env:"IMPORT_DEFAULT_MODE"          env-default:"en_cn"`
}

// WordListConfig holds the per-direction line patterns.
// Empty values select the built-in patterns.
type WordListConfig struct {
	ForwardPattern string `yaml:"forward_pattern" env:"WORDLIST_FORWARD_PATTERN"`
	ReversePattern string `yaml:"reverse_pattern" env:"WORDLIST_REVERSE_PATTERN"`
}

// PDFConfig selects the text extraction engine ("rows" or "stream").
type PDFConfig struct {
	Engine string `yaml:"engine" env:"PDF_ENGINE" env-default:"rows"`
}

// EnrichmentConfig holds AI enrichment settings. An empty BaseURL selects the
// provider's own default endpoint.
type EnrichmentConfig struct {
	Provider          string        `yaml:"provider"            env:"ENRICHMENT_PROVIDER"            env-default:"chat"`
	BaseURL           string        `yaml:"base_url"            env:"ENRICHMENT_BASE_URL"`
	APIKey            string        `yaml:"api_key"             env:"ENRICHMENT_API_KEY"`
	Model             string        `yaml:"model"               env:"ENRICHMENT_MODEL"               env-default:"deepseek-ai/DeepSeek-V3"`
	MaxTokens         int           `yaml:"max_tokens"          env:"ENRICHMENT_MAX_TOKENS"          env-default:"1024"`
	Timeout           time.Duration `yaml:"timeout"             env:"ENRICHMENT_TIMEOUT"             env-default:"10s"`
	EagerCount        int           `yaml:"eager_count"         env:"ENRICHMENT_EAGER_COUNT"         env-default:"10"`
	Workers           int           `yaml:"workers"             env:"ENRICHMENT_WORKERS"             env-default:"4"`
	QueueSize         int           `yaml:"queue_size"          env:"ENRICHMENT_QUEUE_SIZE"          env-default:"256"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"ENRICHMENT_REQUESTS_PER_MINUTE" env-default:"120"`
	Burst             int           `yaml:"burst"               env:"ENRICHMENT_BURST"               env-default:"4"`
	StuckAfter        time.Duration `yaml:"stuck_after"         env:"ENRICHMENT_STUCK_AFTER"         env-default:"15m"`
}
