// Command analyze submits a batch of video files for analysis, waits for
// every job to reach a terminal state and optionally exports the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/motiondex/motiondex/internal/bootstrap"
	"github.com/motiondex/motiondex/internal/config"
	"github.com/motiondex/motiondex/internal/core/domain"
	"github.com/motiondex/motiondex/internal/events"
	"github.com/motiondex/motiondex/internal/infrastructure/export"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".webm": true, ".mkv": true,
}

func main() {
	dir := flag.String("dir", "", "directory to scan for video files")
	exportFormat := flag.String("export", "", "export results when done (csv, json or xlsx)")
	flag.Parse()

	paths, err := collectPaths(*dir, flag.Args())
	if err != nil {
		log.Fatalf("collect inputs: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("nothing to analyze: pass video paths or -dir")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	go func() { _ = app.Scheduler.Run(schedCtx) }()

	// Subscribe before submitting so no terminal event is missed.
	eventCh, unsubscribe := app.Bus.Subscribe()
	defer unsubscribe()

	ids, err := app.Scheduler.SubmitBatch(ctx, paths)
	if err != nil {
		log.Fatalf("submit batch: %v", err)
	}
	app.Logger.Info("batch submitted", "videos", len(ids))

	outcomes := awaitTerminal(ctx, eventCh, ids)
	for id, status := range outcomes {
		fmt.Printf("%s\t%s\n", id, status)
	}

	if *exportFormat != "" {
		format, err := export.ParseFormat(*exportFormat)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		path, err := app.Exporter.Export(ctx, format, ids)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		fmt.Printf("exported\t%s\n", path)
	}
}

func collectPaths(dir string, args []string) ([]string, error) {
	paths := append([]string(nil), args...)
	if dir == "" {
		return paths, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

// awaitTerminal consumes status events until every submitted video reaches
// FIX, ERROR or CANCELED, or the context is canceled.
func awaitTerminal(ctx context.Context, eventCh <-chan events.Event, ids []string) map[string]domain.VideoStatus {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	outcomes := make(map[string]domain.VideoStatus, len(ids))

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return outcomes
		case event, open := <-eventCh:
			if !open {
				return outcomes
			}
			if event.Type != events.TypeStatus || !pending[event.VideoID] {
				continue
			}
			if event.Status.Terminal() {
				outcomes[event.VideoID] = event.Status
				delete(pending, event.VideoID)
			}
		}
	}
	return outcomes
}
