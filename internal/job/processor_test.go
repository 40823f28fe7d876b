package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/hkim-dev/autopress/internal/ai"
	"github.com/hkim-dev/autopress/internal/batch"
	"github.com/hkim-dev/autopress/internal/site"
	"github.com/hkim-dev/autopress/internal/wordpress"
)

type stubProvider struct {
	mu        sync.Mutex
	genCalls  int
	imgCalls  int
	genFn     func(record batch.Record) (*ai.PostContent, error)
	imageFn   func(prompt string) ([]byte, error)
}

func (p *stubProvider) GeneratePost(ctx context.Context, record batch.Record, instructions, model string) (*ai.PostContent, error) {
	p.mu.Lock()
	p.genCalls++
	p.mu.Unlock()
	if p.genFn != nil {
		return p.genFn(record)
	}
	return &ai.PostContent{Title: "A Title", BodyHTML: "<p>body</p>", ImagePrompt: "a sunset"}, nil
}

func (p *stubProvider) GenerateImage(ctx context.Context, prompt, model string) ([]byte, error) {
	p.mu.Lock()
	p.imgCalls++
	p.mu.Unlock()
	if p.imageFn != nil {
		return p.imageFn(prompt)
	}
	return []byte("png-bytes"), nil
}

func (p *stubProvider) generateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.genCalls
}

type stubPublisher struct {
	mu         sync.Mutex
	uploads    int
	publishes  int
	lastPost   wordpress.Post
	uploadErr  error
	publishErr error
}

func (p *stubPublisher) UploadMedia(ctx context.Context, s *site.Site, data []byte, filename string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploadErr != nil {
		return 0, p.uploadErr
	}
	p.uploads++
	return 777, nil
}

func (p *stubPublisher) PublishPost(ctx context.Context, s *site.Site, post wordpress.Post) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return 0, p.publishErr
	}
	p.publishes++
	p.lastPost = post
	return int64(1000 + p.publishes), nil
}

type testEnv struct {
	repo       *Repo
	dispatcher *Dispatcher
	processor  *Processor
	provider   *stubProvider
	publisher  *stubPublisher
	sites      *site.Repo
}

func newTestEnv(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()
	repo := NewRepo(db)
	sites := site.NewRepo(db)

	if err := sites.Create(context.Background(), &site.Site{
		ID:             "site-1",
		Name:           "Test Blog",
		URL:            "https://blog.example.com",
		Username:       "admin",
		AppPasswordB64: "cGFzcw==",
	}); err != nil {
		t.Fatalf("create site: %v", err)
	}

	provider := &stubProvider{}
	publisher := &stubPublisher{}
	proc := NewProcessor(repo, sites, provider, publisher, nil, testLogger(), 2*time.Minute, 20*time.Second)

	return &testEnv{
		repo:       repo,
		dispatcher: NewDispatcher(repo, nil, testLogger()),
		processor:  proc,
		provider:   provider,
		publisher:  publisher,
		sites:      sites,
	}
}

func TestTick_NoActiveJobs(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))

	res, err := env.processor.Tick(context.Background(), 2)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Message != MessageNoActiveJobs {
		t.Fatalf("message = %q, want %q", res.Message, MessageNoActiveJobs)
	}
	if len(res.Outcomes) != 0 {
		t.Fatalf("unexpected outcomes: %+v", res.Outcomes)
	}
	if env.provider.generateCalls() != 0 {
		t.Fatalf("provider called with no active jobs")
	}
}

func TestTick_ProcessesLimitThenCompletes(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "", testRecords(3), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// First tick: exactly limit rows.
	res, err := env.processor.Tick(ctx, 2)
	if err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("tick 1 outcomes = %d, want 2", len(res.Outcomes))
	}
	for _, o := range res.Outcomes {
		if o.Status != "success" {
			t.Fatalf("outcome %d status = %s (%s)", o.RowID, o.Status, o.Error)
		}
		if o.PostID == nil {
			t.Fatalf("outcome %d missing post id", o.RowID)
		}
	}

	j, err := env.repo.GetJobByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if j.Status != JobRunning {
		t.Fatalf("after tick 1 status = %s, want running", j.Status)
	}
	if j.ProcessedRows != 2 {
		t.Fatalf("after tick 1 processed = %d, want 2", j.ProcessedRows)
	}

	// Second tick: the remaining row, then completion in the same call.
	res, err = env.processor.Tick(ctx, 2)
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if len(res.Outcomes) != 1 {
		t.Fatalf("tick 2 outcomes = %d, want 1", len(res.Outcomes))
	}

	j, err = env.repo.GetJobByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if j.Status != JobCompleted {
		t.Fatalf("final status = %s, want completed", j.Status)
	}
	if j.ProcessedRows != j.TotalRows {
		t.Fatalf("processed = %d, total = %d", j.ProcessedRows, j.TotalRows)
	}

	// Resolved rows are never re-processed.
	calls := env.provider.generateCalls()
	res, err = env.processor.Tick(ctx, 2)
	if err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if res.Message != MessageNoActiveJobs {
		t.Fatalf("tick 3 message = %q", res.Message)
	}
	if env.provider.generateCalls() != calls {
		t.Fatalf("completed job was re-processed")
	}
}

func TestTick_RowFailureYieldsPartial(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	env.provider.genFn = func(record batch.Record) (*ai.PostContent, error) {
		if record[0].Value == "keyword-1" {
			return nil, errors.New("model quota exceeded")
		}
		return &ai.PostContent{Title: "T", BodyHTML: "<p>b</p>"}, nil
	}

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "", testRecords(2), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	res, err := env.processor.Tick(ctx, 5)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(res.Outcomes))
	}

	j, err := env.repo.GetJobByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if j.Status != JobPartial {
		t.Fatalf("status = %s, want partial", j.Status)
	}
	if j.ProcessedRows != 2 {
		t.Fatalf("processed = %d, want 2 (failures still count)", j.ProcessedRows)
	}

	rows, err := env.repo.ListRowsByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}
	var failed *Row
	for i := range rows {
		if rows[i].Status == RowFailed {
			failed = &rows[i]
		}
	}
	if failed == nil {
		t.Fatalf("no failed row recorded")
	}
	if failed.ErrorMessage == "" || !strings.Contains(failed.ErrorMessage, "model quota exceeded") {
		t.Fatalf("failed row message = %q", failed.ErrorMessage)
	}
	if failed.ErrorCode != "GenerateFailed" {
		t.Fatalf("failed row code = %q", failed.ErrorCode)
	}

	// A partial job stays in the active set; a later tick reports no pending
	// rows and leaves the terminal status alone.
	res, err = env.processor.Tick(ctx, 5)
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if res.Message != MessageNoPendingRows {
		t.Fatalf("tick 2 message = %q, want %q", res.Message, MessageNoPendingRows)
	}
	j, _ = env.repo.GetJobByID(ctx, jobID)
	if j.Status != JobPartial {
		t.Fatalf("reconciliation changed terminal status to %s", j.Status)
	}
}

func TestTick_ImagePipeline(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "imagen-3.0-generate-002", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	res, err := env.processor.Tick(ctx, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].Status != "success" {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}
	if res.Outcomes[0].MediaID == nil || *res.Outcomes[0].MediaID != 777 {
		t.Fatalf("media id = %v", res.Outcomes[0].MediaID)
	}
	if env.publisher.lastPost.FeaturedMedia != 777 {
		t.Fatalf("featured media = %d", env.publisher.lastPost.FeaturedMedia)
	}

	rows, _ := env.repo.ListRowsByJob(ctx, jobID)
	if rows[0].MediaID == nil || rows[0].PostID == nil {
		t.Fatalf("row ids not persisted: %+v", rows[0])
	}
}

func TestTick_ImageFailureFailsWholeRow(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	env.provider.imageFn = func(prompt string) ([]byte, error) {
		return nil, errors.New("image backend down")
	}

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "imagen-3.0-generate-002", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	res, err := env.processor.Tick(ctx, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Outcomes[0].Status != "failed" {
		t.Fatalf("outcome = %+v", res.Outcomes[0])
	}
	if env.publisher.publishes != 0 {
		t.Fatalf("row published despite image failure")
	}

	rows, _ := env.repo.ListRowsByJob(ctx, jobID)
	if rows[0].Status != RowFailed || rows[0].ErrorCode != "ImageFailed" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestTick_SiteConfigMissing(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "no-such-site", "gemini-2.0-flash", "", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	res, err := env.processor.Tick(ctx, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.Outcomes[0].Status != "failed" {
		t.Fatalf("outcome = %+v", res.Outcomes[0])
	}

	rows, _ := env.repo.ListRowsByJob(ctx, jobID)
	if rows[0].ErrorCode != "SiteConfigMissing" {
		t.Fatalf("error code = %q", rows[0].ErrorCode)
	}
	if !strings.Contains(rows[0].ErrorMessage, "no-such-site") {
		t.Fatalf("error message = %q", rows[0].ErrorMessage)
	}
}

func TestClaimRow_ExactlyOnce(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	rows, _ := env.repo.ListRowsByJob(ctx, jobID)
	rowID := rows[0].ID

	ok, err := env.repo.ClaimRow(ctx, rowID, time.Now())
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = env.repo.ClaimRow(ctx, rowID, time.Now())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("row claimed twice")
	}

	// Settling requires holding the claim.
	settled, err := env.repo.MarkRowFailed(ctx, rowID, "X", "boom")
	if err != nil || !settled {
		t.Fatalf("settle claimed row: settled=%v err=%v", settled, err)
	}
	settled, err = env.repo.MarkRowSucceeded(ctx, rowID, 1, nil)
	if err != nil {
		t.Fatalf("re-settle: %v", err)
	}
	if settled {
		t.Fatalf("row settled twice")
	}
}

func TestReleaseStaleClaims(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	rows, _ := env.repo.ListRowsByJob(ctx, jobID)

	if ok, _ := env.repo.ClaimRow(ctx, rows[0].ID, time.Now().Add(-10*time.Minute)); !ok {
		t.Fatalf("claim failed")
	}

	released, err := env.repo.ReleaseStaleClaims(ctx, time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	// The released row is processable again.
	res, err := env.processor.Tick(ctx, 1)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].Status != "success" {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}
}

func TestProcessRow_SkippedWhenJobVanished(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	rows, _ := env.repo.ListRowsByJob(ctx, jobID)
	if ok, _ := env.repo.ClaimRow(ctx, rows[0].ID, time.Now()); !ok {
		t.Fatalf("claim failed")
	}
	rows[0].Status = RowClaimed

	// The owning job is gone from the active set: skip, release, no writes.
	outcome := env.processor.processRow(ctx, map[string]*Job{}, rows[0])
	if outcome.Status != "skipped" {
		t.Fatalf("outcome = %+v", outcome)
	}

	fresh, _ := env.repo.ListRowsByJob(ctx, jobID)
	if fresh[0].Status != RowPending {
		t.Fatalf("row status = %s, want pending", fresh[0].Status)
	}
	j, _ := env.repo.GetJobByID(ctx, jobID)
	if j.ProcessedRows != 0 {
		t.Fatalf("processed = %d, want 0", j.ProcessedRows)
	}
	if env.provider.generateCalls() != 0 {
		t.Fatalf("provider called for skipped row")
	}
}

func TestIncrementProcessed_NeverExceedsTotal(t *testing.T) {
	env := newTestEnv(t, openTestDB(t))
	ctx := context.Background()

	jobID, err := env.dispatcher.Dispatch(ctx, "site-1", "gemini-2.0-flash", "", testRecords(1), "write")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := env.repo.IncrementProcessed(ctx, jobID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	j, _ := env.repo.GetJobByID(ctx, jobID)
	if j.ProcessedRows > j.TotalRows {
		t.Fatalf("processed %d exceeds total %d", j.ProcessedRows, j.TotalRows)
	}
}
