// Package main implements the seed CLI, which prepares a Postgres database for
// the advisor: it applies the schema, bulk-loads the climate/risk table from
// a CSV export and loads technical manuals into the knowledge base.
//
// Usage:
//
//	go run ./cmd/tools/seed --task=migrate
//	go run ./cmd/tools/seed --task=import-dataset --file=data/processed/dataset_gold_mvp.csv.zst
//	go run ./cmd/tools/seed --task=import-knowledge --dir=data/manuals
//	go run ./cmd/tools/seed --task=import-dataset --file=dataset.csv --dry-run
//
// DATABASE_URL is read from the environment (or a .env file via godotenv).
// With --dry-run the input is parsed and summarised without connecting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"agroia/internal/climate"
	"agroia/internal/config"
	"agroia/internal/db"
	"agroia/internal/knowledge"
)

type task string

const (
	taskMigrate         task = "migrate"
	taskImportDataset   task = "import-dataset"
	taskImportKnowledge task = "import-knowledge"
)

var validTasks = map[task]string{
	taskMigrate:         "Apply the idempotent schema",
	taskImportDataset:   "COPY a climate/risk CSV (optionally .zst) into climate_risk",
	taskImportKnowledge: "Chunk a directory of manuals into knowledge_chunks",
}

func main() {
	taskFlag := flag.String("task", "", "Task to execute (see --list)")
	fileFlag := flag.String("file", "", "Dataset CSV for import-dataset")
	dirFlag := flag.String("dir", "", "Manuals directory for import-knowledge")
	truncateFlag := flag.Bool("truncate", false, "Empty the target table before importing")
	dryRunFlag := flag.Bool("dry-run", false, "Parse the input and print a summary without writing")
	listFlag := flag.Bool("list", false, "List tasks and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: seed [flags]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		printTasks()
		return
	}

	t := task(*taskFlag)
	if _, ok := validTasks[t]; !ok {
		fmt.Fprintf(os.Stderr, "error: unknown or missing --task %q\n\n", *taskFlag)
		printTasks()
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded (this is fine in production)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	result, err := execute(ctx, options{
		task:     t,
		file:     *fileFlag,
		dir:      *dirFlag,
		truncate: *truncateFlag,
		dryRun:   *dryRunFlag,
	}, logger)
	if err != nil {
		logger.Error("seed task failed", "task", string(t), "error", err)
		os.Exit(1)
	}
	logger.Info("seed task succeeded", "task", string(t), "result", result, "duration", time.Since(start))
}

type options struct {
	task     task
	file     string
	dir      string
	truncate bool
	dryRun   bool
}

func execute(ctx context.Context, opts options, logger *slog.Logger) (string, error) {
	var (
		records []climate.Record
		docs    []knowledge.Document
		err     error
	)
	switch opts.task {
	case taskImportDataset:
		if opts.file == "" {
			return "", fmt.Errorf("--file is required for %s", opts.task)
		}
		records, err = climate.NewFileSource(opts.file, logger).LoadRecords(ctx)
		if err != nil {
			return "", err
		}
		if opts.dryRun {
			ds := climate.NewDataset(records)
			return fmt.Sprintf("dry run: %d records, %d municipalities", len(records), len(ds.Municipalities())), nil
		}
	case taskImportKnowledge:
		if opts.dir == "" {
			return "", fmt.Errorf("--dir is required for %s", opts.task)
		}
		docs, err = knowledge.LoadDir(opts.dir)
		if err != nil {
			return "", err
		}
		if opts.dryRun {
			return fmt.Sprintf("dry run: %d chunks, %d topics", len(docs), len(knowledge.NewMemoryStore(docs).Topics())), nil
		}
	case taskMigrate:
		if opts.dryRun {
			return "dry run: schema would be applied", nil
		}
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is required")
	}
	pool, err := db.NewPool(ctx, config.DatabaseConfig{URL: config.SecretString(url), MaxConns: 2})
	if err != nil {
		return "", err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return "", err
	}
	if opts.task == taskMigrate {
		return "schema applied", nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int64
	switch opts.task {
	case taskImportDataset:
		if err := truncate(ctx, tx, opts.truncate, "climate_risk"); err != nil {
			return "", err
		}
		n, err = db.NewClimateRepository(tx).Import(ctx, tx, records)
	case taskImportKnowledge:
		if err := truncate(ctx, tx, opts.truncate, "knowledge_chunks"); err != nil {
			return "", err
		}
		n, err = db.NewKnowledgeRepository(tx).Import(ctx, tx, docs)
	}
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing import: %w", err)
	}
	return fmt.Sprintf("%d rows imported", n), nil
}

func truncate(ctx context.Context, tx pgx.Tx, enabled bool, table string) error {
	if !enabled {
		return nil
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+pgx.Identifier{table}.Sanitize()); err != nil {
		return fmt.Errorf("truncating %s: %w", table, err)
	}
	return nil
}

func printTasks() {
	names := make([]string, 0, len(validTasks))
	for t := range validTasks {
		names = append(names, string(t))
	}
	sort.Strings(names)
	fmt.Println("Available tasks:")
	for _, n := range names {
		fmt.Printf("  %-18s %s\n", n, validTasks[task(n)])
	}
}
