package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

type pairOut struct {
	Term        string `json:"term"        yaml:"term"`
	Translation string `json:"translation" yaml:"translation"`
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if s, err := cmd.Flags().GetString("log-level"); err == nil {
		_ = level.UnmarshalText([]byte(s))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseMode(s string) (domain.DirectionMode, error) {
	mode, ok := domain.ParseDirectionMode(s, domain.DirectionForward)
	if !ok {
		return "", fmt.Errorf("--mode must be %s or %s (got %q)", domain.DirectionForward, domain.DirectionReverse, s)
	}
	return mode, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
