package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/lexiflow-backend/internal/app"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/pdftext"
)

type extractFlags struct {
	mode           string
	engine         string
	format         string
	forwardPattern string
	reversePattern string
}

type extractOut struct {
	File   string    `json:"file"   yaml:"file"`
	Mode   string    `json:"mode"   yaml:"mode"`
	Engine string    `json:"engine" yaml:"engine"`
	Count  int       `json:"count"  yaml:"count"`
	Pairs  []pairOut `json:"pairs"  yaml:"pairs"`
}

func newExtractCmd() *cobra.Command {
	var flags extractFlags
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Print the word pairs found in a PDF without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.mode, "mode", "en_cn", "column order: en_cn or cn_en")
	f.StringVar(&flags.engine, "engine", pdftext.EngineRows, "PDF text engine: rows or stream")
	f.StringVar(&flags.format, "format", formatJSON, "output format: json or yaml")
	f.StringVar(&flags.forwardPattern, "forward-pattern", "", "override the en_cn line pattern (2 capture groups)")
	f.StringVar(&flags.reversePattern, "reverse-pattern", "", "override the cn_en line pattern (2 capture groups)")
	return cmd
}

func runExtract(cmd *cobra.Command, path string, flags extractFlags) error {
	mode, err := parseMode(flags.mode)
	if err != nil {
		return err
	}
	if flags.format != formatJSON && flags.format != formatYAML {
		return fmt.Errorf("--format must be %s or %s (got %q)", formatJSON, formatYAML, flags.format)
	}

	ext, err := app.NewExtractor(config.WordListConfig{
		ForwardPattern: flags.forwardPattern,
		ReversePattern: flags.reversePattern,
	}, flags.engine, newLogger(cmd))
	if err != nil {
		return err
	}

	pairs, err := ext.ExtractFile(cmd.Context(), path, mode)
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}

	out := extractOut{
		File:   filepath.Base(path),
		Mode:   mode.String(),
		Engine: flags.engine,
		Count:  len(pairs),
		Pairs:  make([]pairOut, len(pairs)),
	}
	for i, p := range pairs {
		out.Pairs[i] = pairOut{Term: p.Term, Translation: p.Translation}
	}
	return writeOutput(cmd.OutOrStdout(), flags.format, out)
}
