package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/lexiflow-backend/internal/app"
	"github.com/heartmarshall/lexiflow-backend/internal/config"
	"github.com/heartmarshall/lexiflow-backend/internal/domain"
	"github.com/heartmarshall/lexiflow-backend/internal/pdftext"
	"github.com/heartmarshall/lexiflow-backend/internal/service/enrichment"
	"github.com/heartmarshall/lexiflow-backend/internal/service/importer"
	"github.com/heartmarshall/lexiflow-backend/internal/upload"
)

// localUser owns books imported from the command line unless --user is given.
const localUser = "00000000-0000-0000-0000-000000000001"

type importFlags struct {
	mode     string
	title    string
	user     string
	dbPath   string
	engine   string
	eager    int
	maxBytes int64
	wait     time.Duration
	format   string
}

type importOut struct {
	BookID    string          `json:"book_id"   yaml:"book_id"`
	Title     string          `json:"title"     yaml:"title"`
	Mode      string          `json:"mode"      yaml:"mode"`
	Scheduled int             `json:"scheduled" yaml:"scheduled"`
	Stats     statsOut        `json:"stats"     yaml:"stats"`
	Entries   []importedEntry `json:"entries"   yaml:"entries"`
}

type statsOut struct {
	Pending    int `json:"pending"    yaml:"pending"`
	Processing int `json:"processing" yaml:"processing"`
	Completed  int `json:"completed"  yaml:"completed"`
	Failed     int `json:"failed"     yaml:"failed"`
	Total      int `json:"total"      yaml:"total"`
}

type importedEntry struct {
	pairOut   `yaml:",inline"`
	Position  int    `json:"position"             yaml:"position"`
	Status    string `json:"status"               yaml:"status"`
	Detail    string `json:"detail,omitempty"     yaml:"detail,omitempty"`
	ExampleEN string `json:"example_en,omitempty" yaml:"example_en,omitempty"`
	ExampleCN string `json:"example_cn,omitempty" yaml:"example_cn,omitempty"`
}

func newImportCmd() *cobra.Command {
	var flags importFlags
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a PDF into a local SQLite store and enrich its first entries",
		Long: "Import a PDF into a local SQLite store. Enrichment settings come from the\n" +
			"ENRICHMENT_* environment variables; without ENRICHMENT_API_KEY no entry is\n" +
			"enriched and every entry stays pending.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.mode, "mode", "en_cn", "column order: en_cn or cn_en")
	f.StringVar(&flags.title, "title", "", "book title (default: file name)")
	f.StringVar(&flags.user, "user", localUser, "owner user ID")
	f.StringVar(&flags.dbPath, "sqlite", "lexiflow.db", "SQLite database file")
	f.StringVar(&flags.engine, "engine", pdftext.EngineRows, "PDF text engine: rows or stream")
	f.IntVar(&flags.eager, "eager", -1, "entries to enrich right away (default: ENRICHMENT_EAGER_COUNT)")
	f.Int64Var(&flags.maxBytes, "max-bytes", 20<<20, "largest accepted file")
	f.DurationVar(&flags.wait, "wait", 2*time.Minute, "how long to wait for eager enrichment")
	f.StringVar(&flags.format, "format", formatText, "output format: text, json or yaml")
	return cmd
}

func runImport(cmd *cobra.Command, path string, flags importFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd)

	userID, err := uuid.Parse(flags.user)
	if err != nil {
		return fmt.Errorf("--user: %w", err)
	}

	var ec config.EnrichmentConfig
	if err := cleanenv.ReadEnv(&ec); err != nil {
		return fmt.Errorf("read enrichment env: %w", err)
	}
	if flags.eager >= 0 {
		ec.EagerCount = flags.eager
	}
	if ec.APIKey == "" && ec.EagerCount > 0 {
		logger.Warn("ENRICHMENT_API_KEY not set, skipping eager enrichment")
		ec.EagerCount = 0
	}

	store, err := app.OpenSQLite(ctx, flags.dbPath, true)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := app.NewEnrichClient(ec, logger)
	if err != nil {
		return err
	}
	ext, err := app.NewExtractor(config.WordListConfig{}, flags.engine, logger)
	if err != nil {
		return err
	}

	pool := enrichment.NewPool(logger,
		enrichment.WithWorkers(max(ec.Workers, 1)),
		enrichment.WithQueueSize(max(ec.QueueSize, ec.EagerCount, 1)),
	)
	pool.Start()
	limiter := enrichment.NewLimiter(ec.RequestsPerMinute, ec.Burst)
	scheduler := enrichment.NewScheduler(logger, pool, client, store.Entries, limiter, enrichment.SchedulerConfig{
		EagerCount: ec.EagerCount,
		Timeout:    ec.Timeout,
	})
	svc := importer.NewService(logger,
		importer.Config{MaxUploadBytes: flags.maxBytes},
		store.Tx, store.Books, store.Entries, upload.NewStore(logger, ""), ext, scheduler,
	)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	res, err := svc.Import(ctx, importer.ImportInput{
		UserID:   userID,
		Filename: filepath.Base(path),
		Content:  f,
		Size:     info.Size(),
		Mode:     flags.mode,
		Title:    flags.title,
	})
	if err != nil {
		_ = pool.Shutdown(ctx)
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, flags.wait)
	defer cancel()
	if err := pool.Shutdown(waitCtx); err != nil {
		logger.Warn("stopped waiting for enrichment", slog.String("error", err.Error()))
	}

	entries, err := store.Entries.ListByBook(ctx, res.Book.ID)
	if err != nil {
		return err
	}
	stats, err := store.Entries.Stats(ctx, res.Book.ID)
	if err != nil {
		return err
	}

	out := toImportOut(res, entries, stats)
	if flags.format == formatText {
		return writeImportText(cmd.OutOrStdout(), out)
	}
	return writeOutput(cmd.OutOrStdout(), flags.format, out)
}

func toImportOut(res *importer.ImportResult, entries []domain.Entry, stats domain.EnrichmentStats) importOut {
	out := importOut{
		BookID:    res.Book.ID.String(),
		Title:     res.Book.Title,
		Mode:      res.Book.Direction.String(),
		Scheduled: res.Scheduled,
		Stats: statsOut{
			Pending:    stats.Pending,
			Processing: stats.Processing,
			Completed:  stats.Completed,
			Failed:     stats.Failed,
			Total:      stats.Total,
		},
		Entries: make([]importedEntry, len(entries)),
	}
	for i, e := range entries {
		item := importedEntry{
			pairOut:  pairOut{Term: e.Term, Translation: e.Translation},
			Position: e.Position,
			Status:   e.Status.String(),
		}
		if e.IsEnriched() {
			item.Detail = e.Enrichment.Detail
			item.ExampleEN = e.Enrichment.ExampleEN
			item.ExampleCN = e.Enrichment.ExampleCN
		}
		out.Entries[i] = item
	}
	return out
}

func writeImportText(w io.Writer, out importOut) error {
	fmt.Fprintf(w, "Book:    %s\n", out.Title)
	fmt.Fprintf(w, "ID:      %s\n", out.BookID)
	fmt.Fprintf(w, "Mode:    %s\n", out.Mode)
	fmt.Fprintf(w, "Entries: %d (completed %d, failed %d, pending %d, processing %d)\n\n",
		out.Stats.Total, out.Stats.Completed, out.Stats.Failed, out.Stats.Pending, out.Stats.Processing)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTERM\tTRANSLATION\tSTATUS")
	for _, e := range out.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Position+1, e.Term, e.Translation, e.Status)
	}
	return tw.Flush()
}
