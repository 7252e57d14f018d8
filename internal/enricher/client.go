// Package enricher asks an AI completion service for study notes on a word
// and turns the answer into a domain.Enrichment.
package enricher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

// completer is the outbound AI call. Implementations live in adapter/provider.
type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client performs one enrichment call per word. It never returns anything
// but a complete Enrichment or an error wrapping domain.ErrEnrichmentUnavailable.
type Client struct {
	llm    completer
	parser *parser
	log    *slog.Logger
}

// NewClient creates a Client on top of a completion provider.
func NewClient(logger *slog.Logger, llm completer) (*Client, error) {
	p, err := newParser()
	if err != nil {
		return nil, err
	}
	return &Client{
		llm:    llm,
		parser: p,
		log:    logger.With("service", "enricher"),
	}, nil
}

// Enrich requests study notes for term with the given meaning. The call is
// bounded by timeout; a non-positive timeout fails without calling out.
func (c *Client) Enrich(ctx context.Context, term, meaning string, timeout time.Duration) (result domain.Enrichment, err error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return domain.Enrichment{}, unavailable("empty term")
	}
	if timeout <= 0 {
		return domain.Enrichment{}, unavailable("no time budget")
	}

	defer func() {
		if r := recover(); r != nil {
			result = domain.Enrichment{}
			err = unavailable(fmt.Sprintf("panic: %v", r))
			c.log.ErrorContext(ctx, "enrichment panicked", slog.String("term", term), slog.Any("panic", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := c.llm.Complete(callCtx, buildPrompt(term, strings.TrimSpace(meaning)))
	if err != nil {
		c.log.WarnContext(ctx, "enrichment call failed",
			slog.String("term", term),
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return domain.Enrichment{}, fmt.Errorf("%w: %w", domain.ErrEnrichmentUnavailable, err)
	}

	e, err := c.parser.parse(text)
	if err != nil {
		c.log.WarnContext(ctx, "enrichment response unusable",
			slog.String("term", term),
			slog.Int("response_len", len(text)),
		)
		return domain.Enrichment{}, fmt.Errorf("%w: %w", domain.ErrEnrichmentUnavailable, err)
	}

	c.log.DebugContext(ctx, "enrichment done",
		slog.String("term", term),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return e, nil
}

func unavailable(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrEnrichmentUnavailable, reason)
}
