package integration

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"xengage/internal/runner"
	"xengage/pkg/collector"
	errs "xengage/pkg/errors"
	"xengage/pkg/export"
	"xengage/pkg/fallback"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/ratelimit"
	"xengage/pkg/report"
	"xengage/pkg/storage"
	"xengage/pkg/twitter"
)

// TestHelper owns the scaffolding every integration test shares: a temp
// export directory, a captured logger and the mock servers to shut down.
type TestHelper struct {
	t       *testing.T
	TempDir string
	Log     *logger.TestLogger
	servers []*MockAPIServer
}

// NewTestHelper creates a test helper bound to t.
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{
		t:       t,
		TempDir: t.TempDir(),
		Log:     logger.NewTestLogger(),
	}
}

// Cleanup shuts down everything the helper started.
func (h *TestHelper) Cleanup() {
	for _, s := range h.servers {
		s.Close()
	}
}

// StartServer starts a mock API server preloaded with the given posts.
func (h *TestHelper) StartServer(posts ...*PostFixture) *MockAPIServer {
	server := NewMockAPIServer()
	for _, p := range posts {
		server.AddPost(p)
	}
	h.servers = append(h.servers, server)
	return server
}

// NewClient builds an API client pointed at a mock server.
func (h *TestHelper) NewClient(server *MockAPIServer, pageSize int) *twitter.Client {
	return twitter.NewClient(twitter.Options{
		BaseURL:       server.URL(),
		BearerToken:   "test-bearer-token",
		Timeout:       5 * time.Second,
		PageSize:      pageSize,
		RetryAttempts: 2,
	}, h.Log)
}

// FastWindow builds a request budget that never makes a test wait: generous
// quota, millisecond spacing.
func (h *TestHelper) FastWindow(quota int) *ratelimit.Window {
	return ratelimit.NewWindow(quota, time.Minute, time.Millisecond)
}

// Storage builds a storage manager rooted in the test's temp directory.
func (h *TestHelper) Storage() *storage.Manager {
	store, err := storage.NewManager(h.TempDir)
	if err != nil {
		h.t.Fatalf("Failed to create storage manager: %v", err)
	}
	return store
}

// user builds the n-th fixture account.
func user(n int) userFixture {
	return userFixture{
		ID:       fmt.Sprintf("9000%03d", n),
		Name:     fmt.Sprintf("User %d", n),
		Username: fmt.Sprintf("user%d", n),
	}
}

// users builds n fixture accounts starting at 1.
func users(n int) []userFixture {
	out := make([]userFixture, n)
	for i := range out {
		out[i] = user(i + 1)
	}
	return out
}

// reply builds a reply fixture by the given account.
func reply(id, text string, author userFixture, at time.Time) replyFixture {
	return replyFixture{ID: id, Text: text, CreatedAt: at, Author: author}
}

// fakeRenderer scripts the browser for fallback tests. Each Reveal makes the
// next fragment batch visible; Extract returns everything revealed so far,
// the way a real page accumulates content.
type fakeRenderer struct {
	batches  [][]models.RawFragment
	failOpen bool

	step    int
	opens   int32
	closes  int32
	lastURL string
}

func (r *fakeRenderer) Open(ctx context.Context, postURL string) error {
	if r.failOpen {
		return errs.RenderUnavailable("no browser on this host")
	}
	atomic.AddInt32(&r.opens, 1)
	r.lastURL = postURL
	return nil
}

func (r *fakeRenderer) Reveal(ctx context.Context) error {
	if r.step < len(r.batches) {
		r.step++
	}
	return nil
}

func (r *fakeRenderer) Extract(ctx context.Context) ([]models.RawFragment, error) {
	var out []models.RawFragment
	for i := 0; i < r.step && i < len(r.batches); i++ {
		out = append(out, r.batches[i]...)
	}
	return out, nil
}

func (r *fakeRenderer) Close() error {
	atomic.AddInt32(&r.closes, 1)
	return nil
}

func (r *fakeRenderer) Opened() bool {
	return atomic.LoadInt32(&r.opens) > 0
}

// fragment builds a fully structured reply fragment a resolver will accept.
func fragment(sourceID, handle, name, text string) models.RawFragment {
	return models.RawFragment{
		SourceID:    sourceID,
		Handle:      "@" + handle,
		DisplayName: name,
		ProfileURL:  "https://x.com/" + handle,
		Text:        text,
	}
}

// testPipeline wires the real collection, export and report packages for
// runner pool tests, with scripted renderers instead of Chrome.
type testPipeline struct {
	client    *twitter.Client
	window    *ratelimit.Window
	store     *storage.Manager
	exporter  *export.Writer
	reports   *report.Writer
	log       logger.Logger
	renderers map[string]fallback.Renderer
	opts      collector.Options
}

func newTestPipeline(h *TestHelper, server *MockAPIServer, pageSize int) *testPipeline {
	return &testPipeline{
		client:    h.NewClient(server, pageSize),
		window:    h.FastWindow(100),
		store:     h.Storage(),
		exporter:  export.NewWriter(h.Log),
		reports:   report.NewWriter(h.Log),
		log:       h.Log,
		renderers: make(map[string]fallback.Renderer),
	}
}

func (p *testPipeline) Collect(ctx context.Context, job runner.Job) (*collector.Result, error) {
	source := twitter.NewPostSource(p.client, job.PostID)

	var extractor collector.Extractor
	if r := p.renderers[job.PostID]; r != nil {
		extractor = fallback.NewExtractor(r, p.log).WithTuning(time.Millisecond, 2, 10)
	}

	c := collector.New(source, p.window, extractor, p.opts, p.log)
	return c.Run(ctx, collector.Request{PostID: job.PostID, PostURL: job.PostURL})
}

func (p *testPipeline) Export(res *collector.Result) (string, error) {
	path := p.store.ExportPath(res.PostID, res.FinishedAt)
	if err := p.exporter.Save(res, path); err != nil {
		return "", err
	}
	return path, nil
}

func (p *testPipeline) Report(res *collector.Result, exportPath string) (string, error) {
	path := p.store.ReportPath(exportPath)
	if err := p.reports.Write(report.FromResult(res, exportPath), path); err != nil {
		return "", err
	}
	return path, nil
}
