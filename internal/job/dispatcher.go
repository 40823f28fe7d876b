package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hkim-dev/autopress/internal/batch"
	"github.com/hkim-dev/autopress/internal/event"
)

var (
	ErrEmptyBatch  = errors.New("batch contains no rows")
	ErrMissingSite = errors.New("site reference is required")
)

// Dispatcher turns an uploaded batch into one job and its rows. It writes
// once; all further mutation belongs to the tick processor.
type Dispatcher struct {
	repo     *Repo
	notifier event.Notifier
	logger   *slog.Logger
}

func NewDispatcher(repo *Repo, notifier event.Notifier, logger *slog.Logger) *Dispatcher {
	if notifier == nil {
		notifier = event.Noop{}
	}
	return &Dispatcher{repo: repo, notifier: notifier, logger: logger}
}

// Dispatch validates the batch, then persists the job and one row per input
// record as a single unit of work. Rows keep their input order as ordinals
// and start pending with the chosen models attached. imageModelID may be
// empty for text-only jobs.
func (d *Dispatcher) Dispatch(ctx context.Context, siteID, textModelID, imageModelID string, records []batch.Record, instructions string) (string, error) {
	if len(records) == 0 {
		return "", ErrEmptyBatch
	}
	if siteID == "" {
		return "", ErrMissingSite
	}

	j := &Job{
		ID:           NewJobID(),
		SiteID:       siteID,
		Status:       JobPending,
		TotalRows:    int64(len(records)),
		Instructions: instructions,
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		payload, err := rec.Encode()
		if err != nil {
			return "", fmt.Errorf("encode row %d: %w", i, err)
		}
		rows = append(rows, Row{
			JobID:        j.ID,
			Ordinal:      i,
			Status:       RowPending,
			TextModelID:  textModelID,
			ImageModelID: imageModelID,
			Payload:      payload,
		})
	}

	if err := d.repo.CreateJobWithRows(ctx, j, rows); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}

	d.logger.Info("job dispatched",
		"job_id", j.ID,
		"site_id", siteID,
		"rows", len(rows),
		"text_model", textModelID,
		"image_model", imageModelID,
	)
	d.notifier.Notify(ctx, event.Event{Type: event.JobCreated, JobID: j.ID})

	return j.ID, nil
}
