package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/comment-export-api/internal/archive"
	"github.com/comment-export-api/internal/config"
	"github.com/comment-export-api/internal/database"
	"github.com/comment-export-api/internal/export"
	"github.com/comment-export-api/internal/models"
	"github.com/comment-export-api/internal/render"
	"github.com/comment-export-api/internal/repository"
	"github.com/comment-export-api/internal/service"
	"github.com/comment-export-api/pkg/logger"
	"github.com/fatih/color"
)

func main() {
	var (
		scope       = flag.String("scope", "video", "Export scope: single-comment, video, channel, comments")
		targets     = flag.String("targets", "", "Comma separated comment, video or channel ids")
		archiveSize = flag.Int("archive-size", -1, "Items per archive, 0 for one archive per video (default from EXPORT_ARCHIVE_SIZE)")
		sortBy      = flag.String("sort", "date", "Comment order: date, likes, author")
		sortDir     = flag.String("dir", "asc", "Comment order direction: asc, desc")
		videoOrder  = flag.String("video-order", "published", "Channel video order: published, ingestion")
		keyword     = flag.String("keyword", "", "Only comments whose text or author contains this")
		minLikes    = flag.Int64("min-likes", 0, "Only comments with at least this many likes")
		from        = flag.String("from", "", "Only comments published on or after this date (YYYY-MM-DD)")
		to          = flag.String("to", "", "Only comments published on or before this date (YYYY-MM-DD)")
		outDir      = flag.String("out", "", "Output directory (default from EXPORT_OUTPUT_DIR)")
		noVideo     = flag.Bool("no-video-title", false, "Leave the video title out of rendered comments")
	)
	flag.Parse()

	red := color.New(color.FgRed).SprintFunc()

	if *targets == "" {
		fmt.Fprintln(os.Stderr, red("-targets is required"))
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
	if *outDir != "" {
		cfg.Export.OutputDir = *outDir
	}
	// one run at a time from the command line
	cfg.Export.MaxConcurrentRuns = 1

	req := models.ExportRequest{
		Scope:       models.Scope(*scope),
		TargetIDs:   splitIDs(*targets),
		ArchiveSize: cfg.Export.ArchiveSize,
		Sort:        models.CommentSort{By: models.CommentSortBy(*sortBy), Dir: models.SortDir(*sortDir)},
		VideoOrder:  models.VideoOrder{By: models.VideoOrderBy(*videoOrder), Dir: models.SortAsc},
		Filter:      models.CommentFilter{Keyword: *keyword, MinLikes: *minLikes},
	}
	if *archiveSize >= 0 {
		req.ArchiveSize = *archiveSize
	}
	if req.Filter.DateFrom, err = parseDay(*from, false); err != nil {
		log.Fatal().Err(err).Msg("Invalid -from date")
	}
	if req.Filter.DateTo, err = parseDay(*to, true); err != nil {
		log.Fatal().Err(err).Msg("Invalid -to date")
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	renderer, err := render.NewHTMLRenderer(render.WithVideoTitle(!*noVideo))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load comment template")
	}
	store, err := archive.NewStore(cfg.Export.OutputDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare output directory")
	}

	services := service.NewServices(repository.New(db), renderer, store, cfg, log)

	code := run(services.Export, req, store.Root())
	db.Close()
	os.Exit(code)
}

// run drives one export and prints its progress; the return value is the exit code
func run(exports service.ExportService, req models.ExportRequest, root string) int {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := exports.StartExport(ctx, req)
	if err != nil {
		var invalid *service.InvalidRequestError
		var resolution *export.ResolutionError
		switch {
		case errors.As(err, &invalid):
			for _, e := range invalid.Errors {
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", red("✗"), e.Field, e.Message)
			}
		case errors.As(err, &resolution):
			fmt.Fprintln(os.Stderr, red(resolution.Error()))
		default:
			fmt.Fprintln(os.Stderr, red("export failed: "+err.Error()))
		}
		return 1
	}

	fmt.Println(cyan(fmt.Sprintf("Export %s started (%s %s)", info.ID, req.Scope, strings.Join(req.TargetIDs, ", "))))

	events, unsubscribe, err := exports.Subscribe(info.ID)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		if _, err := exports.CancelRun(info.ID); err == nil {
			fmt.Println()
			fmt.Println(yellow("Cancelling, waiting for in-flight comments..."))
		}
	}()

	for ev := range events {
		switch ev.Type {
		case models.EventProgress:
			if s := ev.Snapshot; s != nil {
				fmt.Printf("\r%s video %d/%d  %d/%d comments  %s failed  %.1f%%   ",
					cyan("▶"), s.VideoIndex, s.VideoCount, s.Attempted, s.Total,
					red(fmt.Sprint(s.Failed)), s.Percent)
			}
		case models.EventArchive:
			if a := ev.Archive; a != nil {
				fmt.Printf("\r%s %s (%d items, %d bytes)\n", green("✓"), a.Name, a.Items, a.SizeBytes)
			}
		}
	}
	fmt.Println()

	final, err := awaitRun(exports, info.ID, 100*time.Millisecond)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}

	status := green(string(final.Status))
	if final.Status != models.RunStatusCompleted {
		status = red(string(final.Status))
	}
	fmt.Printf("Status:   %s\n", status)
	fmt.Printf("Archives: %d in %s\n", len(final.Archives), root)
	fmt.Printf("Comments: %d exported, %d failed\n", final.Progress.Succeeded, final.FailureCount)
	fmt.Printf("Duration: %s\n", time.Duration(final.DurationMs)*time.Millisecond)
	if final.Error != "" {
		fmt.Println(red("Error: " + final.Error))
	}

	if final.FailureCount > 0 {
		failures, _ := exports.GetFailures(info.ID)
		for i, f := range failures {
			if i == 10 {
				fmt.Printf("  ... and %d more, see %s\n", len(failures)-i, archive.FailureReportName)
				break
			}
			fmt.Printf("  %s %s (%s): %s\n", red("✗"), f.CommentID, f.Reason, f.Message)
		}
	}

	if final.Status != models.RunStatusCompleted || final.FailureCount > 0 {
		return 1
	}
	return 0
}

// runGetter reads the state of a run
type runGetter interface {
	GetRun(id string) (*models.RunInfo, error)
}

// awaitRun polls until the run has finished. The event stream can end
// before the terminal event when the subscriber falls behind.
func awaitRun(runs runGetter, id string, interval time.Duration) (*models.RunInfo, error) {
	for {
		info, err := runs.GetRun(id)
		if err != nil {
			return nil, err
		}
		if info.Status.IsFinished() {
			return info, nil
		}
		time.Sleep(interval)
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseDay(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
