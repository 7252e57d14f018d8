package app

import (
	"fmt"
	"log/slog"

	"github.com/heartmarshall/lexiflow-backend/internal/adapter/provider/anthropic"
	"github.com/heartmarshall/lexiflow-backend/internal/adapter/provider/chat"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/enricher"
	"github.com/heartmarshall/lexiflow-backend/internal/extract"
	"github.com/heartmarshall/lexiflow-backend/internal/pdftext"
	"github.com/heartmarshall/lexiflow-backend/internal/wordlist"
)

// Provider names accepted by config.EnrichmentConfig.Provider.
const (
	ProviderChat      = "chat"
	ProviderAnthropic = "anthropic"
)

// NewEnrichClient builds the enrichment client on top of the configured
// completion provider.
func NewEnrichClient(cfg config.EnrichmentConfig, logger *slog.Logger) (*enricher.Client, error) {
	var (
		client *enricher.Client
		err    error
	)
	switch cfg.Provider {
	case ProviderChat, "":
		client, err = enricher.NewClient(logger, chat.NewProvider(chat.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, logger))
	case ProviderAnthropic:
		client, err = enricher.NewClient(logger, anthropic.NewProvider(anthropic.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, logger))
	default:
		return nil, fmt.Errorf("app: unknown enrichment provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("app: enrichment client: %w", err)
	}
	return client, nil
}

// NewExtractor builds the document extractor from the word list patterns and
// the PDF engine choice.
func NewExtractor(wl config.WordListConfig, engine string, logger *slog.Logger) (*extract.Extractor, error) {
	parser, err := wordlist.NewParser(wordlist.Patterns{
		Forward: wl.ForwardPattern,
		Reverse: wl.ReversePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("app: word list parser: %w", err)
	}
	opener, err := pdftext.NewOpener(engine)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return extract.New(logger, opener, parser), nil
}
