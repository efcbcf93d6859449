package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NamanBalaji/vbridge/internal/config"
	"github.com/NamanBalaji/vbridge/internal/engine"
	"github.com/NamanBalaji/vbridge/internal/logger"
	"github.com/NamanBalaji/vbridge/internal/progress"
	"github.com/NamanBalaji/vbridge/internal/status"
)

func main() {
	var (
		rawURL  = flag.String("url", "", "Google Drive share link or raw file id")
		pageID  = flag.String("page", "", "Facebook page id")
		token   = flag.String("token", "", "Facebook access token")
		check   = flag.Bool("check", false, "only verify the token against the page")
		list    = flag.Bool("list", false, "list past transfers")
		debug   = flag.Bool("debug", false, "enable debug logging")
		timeout = flag.Duration("timeout", 0, "per-request timeout (0 disables)")
	)

	flag.Parse()

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *timeout > 0 {
		cfg.RequestTimeout = *timeout
	}

	if err := logger.InitLogging(*debug, cfg.LogPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	sink := progress.NewWriterSink(os.Stdout)

	eng, err := engine.New(cfg, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := run(ctx, eng, *rawURL, *pageID, *token, *check, *list)

	if err := eng.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}

	os.Exit(exitCode)
}

func run(ctx context.Context, eng *engine.Engine, rawURL, pageID, token string, check, list bool) int {
	switch {
	case list:
		return listTransfers(eng)
	case check:
		if token == "" || pageID == "" {
			fmt.Fprintln(os.Stderr, "-check requires -token and -page")
			return 2
		}

		eng.CheckToken(ctx, token, pageID)
		eng.Wait()

		return 0
	default:
		if rawURL == "" || pageID == "" || token == "" {
			fmt.Fprintln(os.Stderr, "transfer requires -url, -page and -token")
			return 2
		}

		id := eng.Transfer(ctx, rawURL, pageID, token)
		eng.Wait()

		record, err := eng.Record(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading result: %v\n", err)
			return 1
		}

		if record.Status != status.Completed {
			return 1
		}

		return 0
	}
}

func listTransfers(eng *engine.Engine) int {
	records, err := eng.History()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		return 1
	}

	for _, r := range records {
		line := fmt.Sprintf("%s  %-11s  %s", r.StartTime.Format(time.DateTime), status.Text(r.Status), r.Source)
		if r.VideoURL != "" {
			line += "  " + r.VideoURL
		}

		fmt.Println(line)
	}

	return 0
}
