package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/repository"
	"github.com/comment-export-api/internal/service"
	"github.com/comment-export-api/pkg/logger"
	"github.com/fatih/color"
)

func main() {
	var (
		videosFile   = flag.String("videos", "", "NDJSON file of videos")
		commentsFile = flag.String("comments", "", "NDJSON file of comments")
		batchSize    = flag.Int("batch", 0, "Rows per insert batch (default from IMPORT_BATCH_SIZE)")
		showErrors   = flag.Int("show-errors", 20, "Validation errors to print per file")
	)
	flag.Parse()

	red := color.New(color.FgRed).SprintFunc()

	if *videosFile == "" && *commentsFile == "" {
		fmt.Fprintln(os.Stderr, red("nothing to import, pass -videos and/or -comments"))
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *batchSize > 0 {
		cfg.Import.BatchSize = *batchSize
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	corpus := service.NewCorpusService(repository.New(db), cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := false
	// videos first, comments are validated against them
	for _, f := range []struct{ resource, path string }{
		{models.ResourceVideos, *videosFile},
		{models.ResourceComments, *commentsFile},
	} {
		if f.path == "" {
			continue
		}
		ok, err := importFile(ctx, corpus, f.resource, f.path, *showErrors)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(fmt.Sprintf("%s: %v", f.path, err)))
			failed = true
			break
		}
		failed = failed || !ok
	}

	if failed {
		stop()
		db.Close()
		os.Exit(1)
	}
}

// importFile loads one NDJSON file and reports whether every record was accepted
func importFile(ctx context.Context, corpus service.CorpusService, resource, path string, showErrors int) (bool, error) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	fmt.Printf("%s importing %s from %s\n", cyan("▶"), resource, path)

	result, err := corpus.Import(ctx, resource, file)
	if err != nil {
		return false, err
	}

	fmt.Printf("  %s %d imported  %s  %d records in %dms (%.0f rows/sec)\n",
		green("✓"), result.SuccessfulCount,
		red(fmt.Sprintf("%d failed", result.FailedCount)),
		result.TotalRecords, result.DurationMs, result.RowsPerSec)

	for i, e := range result.Errors {
		if i == showErrors {
			fmt.Printf("  %s\n", yellow(fmt.Sprintf("... %d more errors", result.ErrorCount-i)))
			break
		}
		fmt.Printf("  %s line %d %s: %s\n", red("✗"), e.Line, e.Field, e.Message)
	}

	return result.FailedCount == 0, nil
}
