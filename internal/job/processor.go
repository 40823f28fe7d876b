package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hkim-dev/autopress/internal/ai"
	"github.com/hkim-dev/autopress/internal/batch"
	"github.com/hkim-dev/autopress/internal/event"
	"github.com/hkim-dev/autopress/internal/site"
	"github.com/hkim-dev/autopress/internal/wordpress"
)

const (
	MessageNoActiveJobs  = "No active jobs"
	MessageNoPendingRows = "No pending rows"
)

// Publisher is the remote publish surface the processor needs; satisfied by
// *wordpress.Client.
type Publisher interface {
	UploadMedia(ctx context.Context, s *site.Site, data []byte, filename string) (int64, error)
	PublishPost(ctx context.Context, s *site.Site, post wordpress.Post) (int64, error)
}

// SiteResolver is satisfied by *site.Repo.
type SiteResolver interface {
	GetByID(ctx context.Context, id string) (*site.Site, error)
}

type RowOutcome struct {
	RowID   uint64 `json:"row_id"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	PostID  *int64 `json:"post_id,omitempty"`
	MediaID *int64 `json:"media_id,omitempty"`
}

// TickResult carries either a no-work sentinel message or exactly one
// outcome per processed row.
type TickResult struct {
	Message  string       `json:"message,omitempty"`
	Outcomes []RowOutcome `json:"outcomes,omitempty"`
}

// Processor drives pending rows through generation, optional image creation,
// and publishing. It holds no state between ticks; every invocation reads
// its work from the store and writes outcomes back row by row.
type Processor struct {
	repo      *Repo
	sites     SiteResolver
	provider  ai.Provider
	publisher Publisher
	notifier  event.Notifier
	logger    *slog.Logger

	claimTTL      time.Duration
	remoteTimeout time.Duration
}

func NewProcessor(repo *Repo, sites SiteResolver, provider ai.Provider, publisher Publisher, notifier event.Notifier, logger *slog.Logger, claimTTL, remoteTimeout time.Duration) *Processor {
	if notifier == nil {
		notifier = event.Noop{}
	}
	if claimTTL <= 0 {
		claimTTL = 2 * time.Minute
	}
	if remoteTimeout <= 0 {
		remoteTimeout = 20 * time.Second
	}
	return &Processor{
		repo:          repo,
		sites:         sites,
		provider:      provider,
		publisher:     publisher,
		notifier:      notifier,
		logger:        logger,
		claimTTL:      claimTTL,
		remoteTimeout: remoteTimeout,
	}
}

// Tick processes up to limit pending rows across all active jobs. Row
// failures stay inside their outcome; the returned error covers store
// unavailability only.
func (p *Processor) Tick(ctx context.Context, limit int) (*TickResult, error) {
	if limit <= 0 {
		limit = 2
	}

	active, err := p.repo.ListActiveJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	if len(active) == 0 {
		return &TickResult{Message: MessageNoActiveJobs}, nil
	}

	jobsByID := make(map[string]*Job, len(active))
	jobIDs := make([]string, 0, len(active))
	for i := range active {
		jobsByID[active[i].ID] = &active[i]
		jobIDs = append(jobIDs, active[i].ID)
	}

	// Return rows stranded by an interrupted tick before selecting.
	if released, err := p.repo.ReleaseStaleClaims(ctx, time.Now().Add(-p.claimTTL)); err != nil {
		return nil, fmt.Errorf("release stale claims: %w", err)
	} else if released > 0 {
		p.logger.Warn("released stale row claims", "count", released)
	}

	pending, err := p.repo.ListPendingRows(ctx, jobIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending rows: %w", err)
	}
	if len(pending) == 0 {
		if err := p.reconcileJobs(ctx, active); err != nil {
			return nil, err
		}
		return &TickResult{Message: MessageNoPendingRows}, nil
	}

	// Claim before dispatching so an overlapping tick cannot double-process
	// the same row. Rows lost to a concurrent claim are dropped here; the
	// winner reports their outcome.
	claimed := pending[:0]
	now := time.Now()
	for _, row := range pending {
		ok, err := p.repo.ClaimRow(ctx, row.ID, now)
		if err != nil {
			return nil, fmt.Errorf("claim row %d: %w", row.ID, err)
		}
		if ok {
			claimed = append(claimed, row)
		}
	}
	if len(claimed) == 0 {
		return &TickResult{Message: MessageNoPendingRows}, nil
	}

	outcomes := make([]RowOutcome, len(claimed))
	var wg sync.WaitGroup
	wg.Add(len(claimed))
	for i := range claimed {
		go func(i int) {
			defer wg.Done()
			outcomes[i] = p.processRow(ctx, jobsByID, claimed[i])
		}(i)
	}
	wg.Wait()

	var pendingJobIDs []string
	for _, j := range active {
		if j.Status == JobPending {
			pendingJobIDs = append(pendingJobIDs, j.ID)
		}
	}
	if err := p.repo.MarkJobsRunning(ctx, pendingJobIDs); err != nil {
		return nil, fmt.Errorf("mark jobs running: %w", err)
	}

	// Settle job statuses for the jobs touched this tick.
	touched := make(map[string]*Job)
	for _, o := range outcomes {
		if j, ok := jobsByID[o.JobID]; ok {
			touched[o.JobID] = j
		}
	}
	for _, j := range touched {
		if err := p.reconcileJob(ctx, j); err != nil {
			return nil, err
		}
	}

	return &TickResult{Outcomes: outcomes}, nil
}

// processRow runs the full pipeline for one claimed row. All failures settle
// the row as failed and bump the job's processed counter; only the vanished
// job case leaves the store untouched.
func (p *Processor) processRow(ctx context.Context, jobs map[string]*Job, row Row) RowOutcome {
	outcome := RowOutcome{RowID: row.ID, JobID: row.JobID}

	j, ok := jobs[row.JobID]
	if !ok {
		// Job disappeared out-of-band. Put the claim back and leave the row
		// alone; deleting the job should have cascaded anyway.
		if err := p.repo.ReleaseClaim(ctx, row.ID); err != nil {
			p.logger.Error("release claim for orphaned row", "row_id", row.ID, "error", err)
		}
		outcome.Status = "skipped"
		outcome.Error = "job not found"
		return outcome
	}

	record, err := batch.Decode(row.Payload)
	if err != nil {
		return p.failRow(ctx, row, outcome, "BadPayload", fmt.Errorf("decode payload: %w", err))
	}

	siteCfg, err := p.resolveSite(ctx, j.SiteID)
	if err != nil {
		return p.failRow(ctx, row, outcome, "SiteConfigMissing", err)
	}

	content, err := p.generate(ctx, record, j.Instructions, row.TextModelID)
	if err != nil {
		return p.failRow(ctx, row, outcome, "GenerateFailed", err)
	}

	var mediaID *int64
	if row.ImageModelID != "" {
		id, err := p.makeImage(ctx, siteCfg, content, row.ImageModelID)
		if err != nil {
			return p.failRow(ctx, row, outcome, "ImageFailed", err)
		}
		mediaID = &id
	}

	postID, err := p.publish(ctx, siteCfg, content, mediaID)
	if err != nil {
		return p.failRow(ctx, row, outcome, "PublishFailed", err)
	}

	settled, err := p.repo.MarkRowSucceeded(ctx, row.ID, postID, mediaID)
	if err != nil {
		p.logger.Error("mark row succeeded", "row_id", row.ID, "error", err)
		outcome.Status = "failed"
		outcome.Error = fmt.Sprintf("store write failed: %v", err)
		return outcome
	}
	if !settled {
		// Lost the claim after publishing; another tick owns the outcome.
		outcome.Status = "skipped"
		outcome.Error = "row settled elsewhere"
		return outcome
	}
	if err := p.repo.IncrementProcessed(ctx, row.JobID); err != nil {
		p.logger.Error("increment processed", "job_id", row.JobID, "error", err)
	}

	outcome.Status = "success"
	outcome.PostID = &postID
	outcome.MediaID = mediaID
	return outcome
}

func (p *Processor) failRow(ctx context.Context, row Row, outcome RowOutcome, code string, cause error) RowOutcome {
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		code = "Timeout"
	}

	p.logger.Warn("row failed",
		"row_id", row.ID,
		"job_id", row.JobID,
		"code", code,
		"error", msg,
	)

	settled, err := p.repo.MarkRowFailed(ctx, row.ID, code, msg)
	if err != nil {
		p.logger.Error("mark row failed", "row_id", row.ID, "error", err)
	}
	if settled {
		if err := p.repo.IncrementProcessed(ctx, row.JobID); err != nil {
			p.logger.Error("increment processed", "job_id", row.JobID, "error", err)
		}
	}

	outcome.Status = "failed"
	outcome.Error = msg
	return outcome
}

func (p *Processor) resolveSite(ctx context.Context, siteID string) (*site.Site, error) {
	cctx, cancel := context.WithTimeout(ctx, p.remoteTimeout)
	defer cancel()

	s, err := p.sites.GetByID(cctx, siteID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("site config not found for site_id %s", siteID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve site %s: %w", siteID, err)
	}
	return s, nil
}

func (p *Processor) generate(ctx context.Context, record batch.Record, instructions, model string) (*ai.PostContent, error) {
	cctx, cancel := context.WithTimeout(ctx, p.remoteTimeout)
	defer cancel()
	return p.provider.GeneratePost(cctx, record, instructions, model)
}

func (p *Processor) makeImage(ctx context.Context, s *site.Site, content *ai.PostContent, model string) (int64, error) {
	prompt := content.ImagePrompt
	if prompt == "" {
		prompt = content.Title
	}

	imgCtx, cancelImg := context.WithTimeout(ctx, p.remoteTimeout)
	defer cancelImg()
	img, err := p.provider.GenerateImage(imgCtx, prompt, model)
	if err != nil {
		return 0, fmt.Errorf("generate image: %w", err)
	}

	upCtx, cancelUp := context.WithTimeout(ctx, p.remoteTimeout)
	defer cancelUp()
	mediaID, err := p.publisher.UploadMedia(upCtx, s, img, "image.png")
	if err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	return mediaID, nil
}

func (p *Processor) publish(ctx context.Context, s *site.Site, content *ai.PostContent, mediaID *int64) (int64, error) {
	post := wordpress.Post{
		Title:   content.Title,
		Content: content.BodyHTML,
		Status:  "publish",
	}
	if mediaID != nil {
		post.FeaturedMedia = *mediaID
	}

	cctx, cancel := context.WithTimeout(ctx, p.remoteTimeout)
	defer cancel()

	postID, err := p.publisher.PublishPost(cctx, s, post)
	if err != nil {
		return 0, fmt.Errorf("publish post: %w", err)
	}
	return postID, nil
}

func (p *Processor) reconcileJobs(ctx context.Context, jobs []Job) error {
	for i := range jobs {
		if err := p.reconcileJob(ctx, &jobs[i]); err != nil {
			return err
		}
	}
	return nil
}

// reconcileJob re-derives the job's status from its rows and applies the
// transition when it changed. Safe to call any number of times.
func (p *Processor) reconcileJob(ctx context.Context, j *Job) error {
	unfinished, err := p.repo.CountRowsByStatus(ctx, j.ID, RowPending, RowClaimed)
	if err != nil {
		return fmt.Errorf("count unfinished rows: %w", err)
	}
	failed, err := p.repo.CountRowsByStatus(ctx, j.ID, RowFailed)
	if err != nil {
		return fmt.Errorf("count failed rows: %w", err)
	}

	current, err := p.repo.GetJobByID(ctx, j.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load job %s: %w", j.ID, err)
	}

	next, changed := Transition(current.Status, unfinished, failed)
	if !changed {
		return nil
	}

	applied, err := p.repo.SetJobStatus(ctx, j.ID, current.Status, next)
	if err != nil {
		return fmt.Errorf("set job %s status: %w", j.ID, err)
	}
	if applied {
		p.logger.Info("job reconciled", "job_id", j.ID, "status", next)
		p.notifier.Notify(ctx, event.Event{Type: event.JobFinished, JobID: j.ID, Status: string(next)})
	}
	return nil
}
