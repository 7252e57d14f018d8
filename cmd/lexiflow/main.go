// lexiflow is the offline companion CLI: extract (dry run), import (into a
// local SQLite store) and token (mint a bearer token for the API).
//
// Usage:
//
//	lexiflow extract FILE [--mode en_cn|cn_en] [--engine rows|stream] [--format json|yaml]
//	lexiflow import FILE [--mode ...] [--title ...] [--user UUID] [--sqlite PATH]
//	lexiflow token --user UUID [--ttl 24h]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/lexiflow-backend/internal/app"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lexiflow",
		Short: "Turn two-column PDF word lists into enriched vocabulary books",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      app.BuildVersion(),
	}
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newExtractCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
