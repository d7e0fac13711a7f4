package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/fetcher"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const widgetHTML = `<html><body>
<span id="productTitle">Widget</span>
<span class="a-price"><span class="a-offscreen">1,299.00</span></span>
<div id="availability"><span>In stock</span></div>
</body></html>`

const cheaperWidgetHTML = `<html><body>
<span id="productTitle">Widget</span>
<span class="a-price"><span class="a-offscreen">999.00</span></span>
<div id="availability"><span>In stock</span></div>
</body></html>`

const noPriceHTML = `<html><body>
<span id="productTitle">Gadget</span>
<div id="availability"><span>In stock</span></div>
</body></html>`

const overRatedHTML = `<html><body>
<span id="productTitle">   Spinner
   Deluxe  </span>
<span class="a-price"><span class="a-offscreen">499.00</span></span>
<div id="availability"><span>In stock</span></div>
<span id="acrPopover"><span class="a-icon-alt">5.7 out of 5 stars</span></span>
</body></html>`

// fakeSource serves canned pages without delays.
type fakeSource struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeSource) FetchEach(ctx context.Context, ids []string, fn func(string, *types.RawPage, error)) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.calls = append(f.calls, id)
		if err, ok := f.errs[id]; ok {
			fn(id, nil, err)
			continue
		}
		fn(id, &types.RawPage{
			ID:         uuid.New(),
			Identifier: id,
			URL:        "https://www.amazon.in/dp/" + id,
			StatusCode: 200,
			HTML:       f.pages[id],
			FetchedAt:  fixedNow,
		}, nil)
	}
	return nil
}

// failingStore rejects upserts for one identifier.
type failingStore struct {
	*storage.MemoryStore
	failID string
}

func (s *failingStore) UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error {
	if rec.Identifier == s.failID {
		return &types.StorageError{Backend: "memory", Op: "upsert", Err: errors.New("disk full")}
	}
	return s.MemoryStore.UpsertProduct(ctx, rec)
}

func newRunner(cfg *config.Config, src PageSource, store storage.Store, m *observability.Metrics) *Runner {
	return NewRunner(cfg, Deps{
		Source:  src,
		Store:   store,
		Metrics: m,
		Now:     func() time.Time { return fixedNow },
	}, testLogger)
}

// --- Pipeline ---

type stageFunc struct {
	name string
	fn   func(*Job) (*Job, error)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Process(_ context.Context, j *Job) (*Job, error) { return s.fn(j) }

func TestPipelineOrderAndDrop(t *testing.T) {
	var order []string
	mk := func(name string, drop bool) Stage {
		return stageFunc{name: name, fn: func(j *Job) (*Job, error) {
			order = append(order, name)
			if drop {
				return nil, nil
			}
			return j, nil
		}}
	}
	p := New(testLogger).Use(mk("a", false)).Use(mk("b", true)).Use(mk("c", false))

	out, err := p.Process(context.Background(), &Job{Identifier: "X"})
	if err != nil || out != nil {
		t.Fatalf("expected dropped job, got %v, %v", out, err)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Errorf("order = %v", order)
	}
	if strings.Join(p.Stages(), ",") != "a,b,c" {
		t.Errorf("stages = %v", p.Stages())
	}
}

func TestPipelineErrorNamesStage(t *testing.T) {
	boom := errors.New("boom")
	p := New(testLogger).Use(stageFunc{name: "store", fn: func(*Job) (*Job, error) { return nil, boom }})

	_, err := p.Process(context.Background(), &Job{Identifier: "B08N5WRWNW"})
	var perr *types.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if perr.Stage != "store" || perr.Identifier != "B08N5WRWNW" || !errors.Is(err, boom) {
		t.Errorf("unexpected error %+v", perr)
	}
}

func TestRunnerStageChain(t *testing.T) {
	r := newRunner(config.DefaultConfig(), &fakeSource{}, storage.NewMemoryStore(testLogger), nil)
	want := "raw_page,parse,validate,sanitize,detect_changes,store,export"
	if got := strings.Join(r.Pipeline().Stages(), ","); got != want {
		t.Errorf("stages = %s, want %s", got, want)
	}
}

// --- Runner ---

func TestRunBatchSummary(t *testing.T) {
	cfg := config.DefaultConfig()
	store := storage.NewMemoryStore(testLogger)
	m := observability.NewMetrics()
	src := &fakeSource{
		pages: map[string]string{
			"B08N5WRWNW": widgetHTML,
			"B000000002": noPriceHTML,
		},
		errs: map[string]error{
			"B000000001": types.ErrMaxRetries,
		},
	}

	summary, err := newRunner(cfg, src, store, m).Run(context.Background(),
		[]string{" b08n5wrwnw ", "BAD", "B000000001", "B000000002", "B08N5WRWNW"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.Succeeded != 1 || summary.Failed != 1 || summary.Invalid != 2 {
		t.Fatalf("summary = %d/%d/%d, want 1/1/2", summary.Succeeded, summary.Failed, summary.Invalid)
	}
	if summary.Total() != 4 || len(summary.Results) != 4 {
		t.Errorf("total = %d, results = %d", summary.Total(), len(summary.Results))
	}
	if strings.Join(src.calls, ",") != "B08N5WRWNW,B000000001,B000000002" {
		t.Errorf("fetched %v; malformed ids must not be requested and duplicates only once", src.calls)
	}
	if summary.RunID == "" || !summary.FinishedAt.Equal(fixedNow) {
		t.Errorf("run metadata = %q, %v", summary.RunID, summary.FinishedAt)
	}

	snap, err := store.GetCurrentSnapshot(context.Background(), "B08N5WRWNW")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if *snap.CurrentPrice != 1299.00 || *snap.Title != "Widget" || snap.Availability != types.InStock {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, err := store.GetCurrentSnapshot(context.Background(), "B000000002"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("invalid record must not be stored, got %v", err)
	}

	for _, res := range summary.Results {
		if res.Identifier == "B000000002" {
			if res.Status != StatusInvalid || len(res.Violations) == 0 || res.Violations[0] != "in-stock item missing price" {
				t.Errorf("invalid result = %+v", res)
			}
		}
		if res.Identifier == "BAD" && res.Stage != "identifier" {
			t.Errorf("malformed identifier stage = %q", res.Stage)
		}
	}

	if got := testutil.ToFloat64(m.Records.WithLabelValues("invalid")); got != 2 {
		t.Errorf("invalid counter = %v", got)
	}
	if got := testutil.ToFloat64(m.LastRunTimestamp); got != float64(fixedNow.Unix()) {
		t.Errorf("last run = %v", got)
	}
}

func TestRunStorageFailureDoesNotAbort(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore(testLogger), failID: "B000000001"}
	src := &fakeSource{pages: map[string]string{
		"B000000001": widgetHTML,
		"B08N5WRWNW": widgetHTML,
	}}

	summary, err := newRunner(config.DefaultConfig(), src, store, nil).Run(context.Background(),
		[]string{"B000000001", "B08N5WRWNW"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Results[0].Stage != "store" {
		t.Errorf("failed stage = %q, want store", summary.Results[0].Stage)
	}
}

func TestRunEmptyPageFails(t *testing.T) {
	src := &fakeSource{pages: map[string]string{}}
	summary, _ := newRunner(config.DefaultConfig(), src, storage.NewMemoryStore(testLogger), nil).
		Run(context.Background(), []string{"B08N5WRWNW"})
	if summary.Failed != 1 || summary.Results[0].Stage != "parse" {
		t.Errorf("summary = %+v", summary.Results)
	}
}

func TestRunDetectsChanges(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	store := storage.NewMemoryStore(testLogger)
	src := &fakeSource{pages: map[string]string{"B08N5WRWNW": widgetHTML}}

	first, err := newRunner(cfg, src, store, nil).Run(ctx, []string{"B08N5WRWNW"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Results[0].Changes) != 1 || first.Results[0].Changes[0].Type != monitor.ChangeAdded {
		t.Errorf("first run changes = %+v", first.Results[0].Changes)
	}

	src.pages["B08N5WRWNW"] = cheaperWidgetHTML
	second, err := newRunner(cfg, src, store, nil).Run(ctx, []string{"B08N5WRWNW"})
	if err != nil {
		t.Fatal(err)
	}
	changes := second.Results[0].Changes
	if len(changes) != 1 || changes[0].Field != "price" || changes[0].NewValue != "999.00" {
		t.Errorf("second run changes = %+v", changes)
	}

	hist, _ := store.GetHistory(ctx, "B08N5WRWNW", time.Time{})
	if len(hist) != 2 {
		t.Errorf("history rows = %d, want 2", len(hist))
	}
}

func TestRunFlagsAnomaly(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(testLogger)
	src := &fakeSource{pages: map[string]string{"B08N5WRWNW": widgetHTML}}
	r := newRunner(config.DefaultConfig(), src, store, nil)

	if _, err := r.Run(ctx, []string{"B08N5WRWNW"}); err != nil {
		t.Fatal(err)
	}
	src.pages["B08N5WRWNW"] = strings.Replace(widgetHTML, "1,299.00", "399.00", 1)
	summary, err := r.Run(ctx, []string{"B08N5WRWNW"})
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Results[0].Anomalous {
		t.Error("a 69% drop should be flagged")
	}
}

func TestRunWritesExports(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.Export.Enabled = true
	cfg.Storage.Export.Format = "jsonl"
	cfg.Storage.Export.OutputPath = filepath.Join(dir, "out")
	cfg.Storage.Export.QuarantinePath = filepath.Join(dir, "quarantine")

	src := &fakeSource{pages: map[string]string{
		"B08N5WRWNW": widgetHTML,
		"B000000002": noPriceHTML,
		"B000000003": overRatedHTML,
	}}
	summary, err := newRunner(cfg, src, storage.NewMemoryStore(testLogger), nil).
		Run(context.Background(), []string{"B08N5WRWNW", "B000000002", "B000000003"})
	if err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(summary.ExportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(out), `"identifier":"B08N5WRWNW"`) {
		t.Errorf("export = %s", out)
	}
	rejected, err := os.ReadFile(summary.QuarantinePath)
	if err != nil {
		t.Fatalf("read quarantine: %v", err)
	}
	if !strings.Contains(string(rejected), "in-stock item missing price") {
		t.Errorf("quarantine = %s", rejected)
	}
	// Quarantined rows are sanitized; violations describe the raw record.
	var overRated string
	for _, line := range strings.Split(strings.TrimSpace(string(rejected)), "\n") {
		if strings.Contains(line, `"identifier":"B000000003"`) {
			overRated = line
		}
	}
	if overRated == "" {
		t.Fatalf("over-rated record not quarantined: %s", rejected)
	}
	for _, want := range []string{`"rating":5`, `"currency":"INR"`, `"title":"Spinner Deluxe"`, "rating 5.7 out of bounds"} {
		if !strings.Contains(overRated, want) {
			t.Errorf("quarantine line missing %s: %s", want, overRated)
		}
	}
	if strings.Contains(overRated, `"rating":5.7`) {
		t.Errorf("quarantined rating was not clamped: %s", overRated)
	}
	if filepath.Dir(summary.QuarantinePath) != cfg.Storage.Export.QuarantinePath {
		t.Errorf("quarantine path = %s", summary.QuarantinePath)
	}
}

func TestRunCancelledReturnsPartialSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := newRunner(config.DefaultConfig(), &fakeSource{}, storage.NewMemoryStore(testLogger), nil).
		Run(ctx, []string{"B08N5WRWNW"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if summary == nil || summary.Total() != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunEndToEndOverHTTP(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scraper.BaseURL = "https://shop.example"

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", "https://shop.example/dp/B08N5WRWNW",
		httpmock.NewStringResponder(200, widgetHTML))

	f := fetcher.NewHTTPFetcherWithClient(&http.Client{Transport: mock}, cfg, testLogger)
	hm := fetcher.NewHeaderManager(cfg.Scraper.Profiles, cfg.Scraper.BaseURL+"/")
	scraper := fetcher.NewScraper(f, hm, cfg.Scraper, testLogger,
		fetcher.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		fetcher.WithRand(rand.New(rand.NewSource(1))),
	)

	store := storage.NewMemoryStore(testLogger)
	r := NewRunner(cfg, Deps{Source: scraper, Store: store}, testLogger)

	summary, err := r.Run(context.Background(), []string{"b08n5wrwnw"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary.Results)
	}
	if mock.GetTotalCallCount() != 1 {
		t.Errorf("calls = %d", mock.GetTotalCallCount())
	}

	snap, err := store.GetCurrentSnapshot(context.Background(), "B08N5WRWNW")
	if err != nil {
		t.Fatal(err)
	}
	if *snap.CurrentPrice != 1299.00 || snap.SourceURL != "https://shop.example/dp/B08N5WRWNW" || snap.Currency != "INR" {
		t.Errorf("snapshot = %+v", snap)
	}
}

// --- Quality ---

func priced(id string, p float64) *types.SanitizedRecord {
	return &types.SanitizedRecord{ProductRecord: types.ProductRecord{Identifier: id, CurrentPrice: types.Ptr(p)}}
}

func TestCheckQuality(t *testing.T) {
	if r := CheckQuality(nil); r.Passed || r.FailedChecks[0] != "no data to check" {
		t.Errorf("empty batch = %+v", r)
	}

	ok := CheckQuality([]*types.SanitizedRecord{priced("A", 10), priced("B", 30)})
	if !ok.Passed || ok.PriceStats.Avg != 20 || ok.PriceStats.Min != 10 || ok.PriceStats.Max != 30 {
		t.Errorf("report = %+v", ok)
	}

	dup := CheckQuality([]*types.SanitizedRecord{priced("A", 10), priced("A", 11), priced("", 12)})
	if dup.Passed || len(dup.FailedChecks) != 2 {
		t.Errorf("report = %+v", dup.FailedChecks)
	}

	var batch []*types.SanitizedRecord
	for i, p := range []float64{100, 100, 100, 100, 100, 100, 1} {
		batch = append(batch, priced(string(rune('A'+i)), p))
	}
	outlier := CheckQuality(batch)
	if outlier.Passed || !strings.Contains(outlier.FailedChecks[0], "1 suspicious prices") {
		t.Errorf("report = %+v", outlier.FailedChecks)
	}

	small := CheckQuality(batch[len(batch)-5:])
	if !small.Passed {
		t.Errorf("five prices are below the outlier sample size: %+v", small.FailedChecks)
	}
}

// --- Checkpoint ---

func TestCheckpointDue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	now := fixedNow
	cp := NewCheckpoint(path).WithClock(func() time.Time { return now })

	due, err := cp.Due(4 * time.Hour)
	if err != nil || !due {
		t.Fatalf("no checkpoint should be due: %v %v", due, err)
	}

	if err := cp.Mark(&Summary{RunID: "r1", FinishedAt: fixedNow, Succeeded: 3}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	last, err := cp.Last()
	if err != nil || last.RunID != "r1" || last.Succeeded != 3 {
		t.Fatalf("last = %+v, %v", last, err)
	}

	now = fixedNow.Add(time.Hour)
	if due, _ := cp.Due(4 * time.Hour); due {
		t.Error("run one hour later should not be due")
	}
	if due, _ := cp.Due(0); !due {
		t.Error("zero interval is always due")
	}
	now = fixedNow.Add(4 * time.Hour)
	if due, _ := cp.Due(4 * time.Hour); !due {
		t.Error("run after the interval should be due")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	due, err := NewCheckpoint(path).Due(time.Hour)
	if err == nil || !due {
		t.Errorf("corrupt checkpoint: due=%v err=%v", due, err)
	}
}
