package config

import (
	"fmt"
	"regexp"
	"slices"
)

var (
	supportedDrivers   = []string{"postgres", "sqlite"}
	supportedEngines   = []string{"rows", "stream"}
	supportedProviders = []string{"chat", "anthropic"}
	supportedModes     = []string{"en_cn", "cn_en"}
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if !slices.Contains(supportedDrivers, c.Database.Driver) {
		return fmt.Errorf("database.driver must be one of %v (got %q)", supportedDrivers, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if err := c.Import.validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := c.WordList.validate(); err != nil {
		return fmt.Errorf("wordlist: %w", err)
	}
	if !slices.Contains(supportedEngines, c.PDF.Engine) {
		return fmt.Errorf("pdf.engine must be one of %v (got %q)", supportedEngines, c.PDF.Engine)
	}
	if err := c.Enrichment.validate(); err != nil {
		return fmt.Errorf("enrichment: %w", err)
	}

	return nil
}

// ValidateServer adds the rules that only apply when serving HTTP.
func (c *Config) ValidateServer() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	return nil
}

func (i *ImportConfig) validate() error {
	if i.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be > 0 (got %d)", i.MaxUploadBytes)
	}
	if i.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must be >= 0 (got %d)", i.RateLimitPerMinute)
	}
	if !slices.Contains(supportedModes, i.DefaultMode) {
		return fmt.Errorf("default_mode must be one of %v (got %q)", supportedModes, i.DefaultMode)
	}
	return nil
}

func (w *WordListConfig) validate() error {
	for name, p := range map[string]string{"forward_pattern": w.ForwardPattern, "reverse_pattern": w.ReversePattern} {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if re.NumSubexp() != 2 {
			return fmt.Errorf("%s must have exactly 2 capture groups (got %d)", name, re.NumSubexp())
		}
	}
	return nil
}

func (e *EnrichmentConfig) validate() error {
	if !slices.Contains(supportedProviders, e.Provider) {
		return fmt.Errorf("provider must be one of %v (got %q)", supportedProviders, e.Provider)
	}
	if e.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (got %v)", e.Timeout)
	}
	if e.EagerCount < 0 {
		return fmt.Errorf("eager_count must be >= 0 (got %d)", e.EagerCount)
	}
	if e.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", e.Workers)
	}
	if e.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be > 0 (got %d)", e.QueueSize)
	}
	if e.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0 (got %d)", e.RequestsPerMinute)
	}
	if e.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be > 0 (got %d)", e.MaxTokens)
	}
	return nil
}
