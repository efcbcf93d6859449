package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/NamanBalaji/vbridge/internal/config"
	"github.com/NamanBalaji/vbridge/internal/drive"
	"github.com/NamanBalaji/vbridge/internal/graph"
	"github.com/NamanBalaji/vbridge/internal/logger"
	"github.com/NamanBalaji/vbridge/internal/progress"
	"github.com/NamanBalaji/vbridge/internal/repository"
	"github.com/NamanBalaji/vbridge/internal/status"
	"github.com/NamanBalaji/vbridge/internal/transfer"
	httpPkg "github.com/NamanBalaji/vbridge/pkg/http"
)

const (
	artifactName   = "video.mp4"
	diagnosticName = "error.html"
)

// Engine schedules transfer and token-check operations as tracked asynchronous
// tasks. Each operation owns a private directory under the temp dir, so
// concurrent operations never share an artifact path.
type Engine struct {
	cfg   *config.Config
	sink  progress.Sink
	repo  *repository.BboltRepository
	drive *drive.Client
	graph *graph.Client
	group *errgroup.Group
}

// New creates an Engine instance
func New(cfg *config.Config, sink progress.Sink) (*Engine, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	repo, err := repository.NewBboltRepository(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	client := httpPkg.NewClient(cfg.RequestTimeout)

	group := &errgroup.Group{}
	group.SetLimit(cfg.MaxConcurrentTransfers)

	return &Engine{
		cfg:   cfg,
		sink:  sink,
		repo:  repo,
		drive: drive.NewClient(client, cfg.Drive, sink),
		graph: graph.NewClient(client, cfg.Graph, sink),
		group: group,
	}, nil
}

// Transfer schedules a download-then-upload operation and returns its id.
// When MaxConcurrentTransfers operations are already in flight, Transfer
// blocks until a slot frees; that backpressure bounds disk use in the temp
// dir, since every queued operation would otherwise hold an artifact. The
// outcome is recorded in history; failures also surface on the progress sink.
func (e *Engine) Transfer(ctx context.Context, rawURL, pageID, token string) uuid.UUID {
	id := uuid.New()

	record := &transfer.Record{
		ID:        id,
		Source:    rawURL,
		FileID:    drive.FileID(rawURL),
		PageID:    pageID,
		Status:    status.Pending,
		StartTime: time.Now(),
	}

	if err := e.repo.Save(record); err != nil {
		logger.Errorf("Failed to save record %s: %v", id, err)
	}

	e.group.Go(func() error {
		e.runTransfer(ctx, record, token)
		// Task outcomes live in the record; never cancel sibling operations.
		return nil
	})

	return id
}

func (e *Engine) runTransfer(ctx context.Context, record *transfer.Record, token string) {
	opDir := filepath.Join(e.cfg.TempDir, record.ID.String())

	if err := os.MkdirAll(opDir, 0o755); err != nil {
		e.fail(record, fmt.Errorf("failed to create operation directory: %w", err))
		return
	}

	artifactPath := filepath.Join(opDir, artifactName)
	diagnosticPath := filepath.Join(opDir, diagnosticName)

	record.Status = status.Downloading
	e.save(record)

	err := e.drive.Download(ctx, record.FileID, artifactPath, diagnosticPath, record.ID)
	if err != nil {
		progress.Emit(e.sink, record.ID, "Download failed: %v", err)
		e.fail(record, err)

		return
	}

	record.Status = status.Uploading
	e.save(record)

	videoURL, err := e.graph.Upload(ctx, artifactPath, record.PageID, token, record.ID)
	if err != nil {
		progress.Emit(e.sink, record.ID, "Facebook upload failed: %v", err)
		e.fail(record, err)

		return
	}

	record.VideoURL = videoURL
	record.Status = status.Completed
	record.EndTime = time.Now()
	e.save(record)

	// The artifact is only an intermediate; diagnostics are kept on failure,
	// nothing is worth keeping on success.
	if err := os.RemoveAll(opDir); err != nil {
		logger.Warnf("Failed to remove operation directory %s: %v", opDir, err)
	}
}

// CheckToken schedules a read-only probe of the credential against the page.
func (e *Engine) CheckToken(ctx context.Context, token, pageID string) uuid.UUID {
	id := uuid.New()

	e.group.Go(func() error {
		if err := e.graph.CheckToken(ctx, token, pageID, id); err != nil {
			logger.Infof("Token check %s failed: %v", id, err)
		}

		return nil
	})

	return id
}

// Record returns one transfer's history entry.
func (e *Engine) Record(id uuid.UUID) (*transfer.Record, error) {
	return e.repo.Find(id)
}

// History returns every recorded transfer.
func (e *Engine) History() ([]*transfer.Record, error) {
	return e.repo.FindAll()
}

// Wait blocks until all scheduled operations have finished.
func (e *Engine) Wait() {
	e.group.Wait()
}

// Shutdown drains running operations and closes the history database.
func (e *Engine) Shutdown() error {
	e.Wait()

	return e.repo.Close()
}

func (e *Engine) fail(record *transfer.Record, err error) {
	record.Status = status.Failed
	record.Error = err.Error()
	record.EndTime = time.Now()
	e.save(record)
}

func (e *Engine) save(record *transfer.Record) {
	if err := e.repo.Save(record); err != nil {
		logger.Errorf("Failed to save record %s: %v", record.ID, err)
	}
}
