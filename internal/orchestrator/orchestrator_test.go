package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stayguard/stayguard/internal/cluster"
	"github.com/stayguard/stayguard/internal/confidence"
	"github.com/stayguard/stayguard/internal/impact"
	"github.com/stayguard/stayguard/internal/lock"
	"github.com/stayguard/stayguard/internal/models"
	"github.com/stayguard/stayguard/internal/store"
)

type fakeEnricher struct {
	mu          sync.Mutex
	toneCalls   int
	headerCalls int
	tone        models.Tone
	header      string
	err         error
}

func (f *fakeEnricher) Tone(ctx context.Context, title string, sources []models.ConfidenceSource) (models.Tone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toneCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.tone, nil
}

func (f *fakeEnricher) Header(ctx context.Context, mainType models.MainType, nightsAtRisk int, poundsAtRisk float64, whenText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headerCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.header, nil
}

func (f *fakeEnricher) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toneCalls, f.headerCalls
}

type fakeTagger struct{}

func (fakeTagger) Sectors(mainType models.MainType, text string) []string {
	return []string{"hotels"}
}

// failingRepo wraps a real repository and fails saves for one city.
type failingRepo struct {
	store.Repository
	failCity string
}

func (r *failingRepo) Save(ctx context.Context, alert models.Alert) error {
	if alert.City == r.failCity {
		return errors.New("save rejected")
	}
	return r.Repository.Save(ctx, alert)
}

func newTestOrchestrator(repo store.Repository, enricher *fakeEnricher) *Orchestrator {
	return New(
		repo,
		enricher,
		cluster.New(cluster.DefaultThreshold),
		confidence.New(nil),
		impact.New(impact.DefaultTables()),
		fakeTagger{},
		lock.NewMutexKeyLock(),
		Config{},
	)
}

func report(id, city string, mainType models.MainType, title, source, url string, tier models.CredibilityTier) models.DisruptionReport {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return models.DisruptionReport{
		ID:                id,
		City:              city,
		MainType:          mainType,
		Title:             title,
		Summary:           "summary",
		StartDate:         start,
		EndDate:           start.AddDate(0, 0, 2),
		Source:            source,
		URL:               url,
		SourceCredibility: tier,
		DetectedAt:        start.AddDate(0, 0, -1),
	}
}

func TestProcess_TwoCorroboratingReportsCreateApprovedAlert(t *testing.T) {
	repo := store.NewInMemoryRepository()
	enricher := &fakeEnricher{tone: models.ToneConfirmed, header: "Strike risk in Edinburgh"}
	o := newTestOrchestrator(repo, enricher)
	ctx := context.Background()

	reports := []models.DisruptionReport{
		report("r1", "Edinburgh", models.MainTypeStrike, "Ryanair Edinburgh pilot strike", "bbc", "https://bbc.example/1", models.TierMajorNews),
		report("r2", "Edinburgh", models.MainTypeStrike, "Ryanair pilot strike hits Edinburgh", "sky", "https://sky.example/1", models.TierMajorNews),
	}

	alerts, err := o.Process(ctx, reports)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", a.Confidence)
	}
	if a.Status != models.StatusApproved {
		t.Errorf("status = %s, want approved", a.Status)
	}
	if len(a.ConfidenceSources) != 2 {
		t.Errorf("sources = %d, want 2", len(a.ConfidenceSources))
	}
	if a.Tone != models.ToneConfirmed {
		t.Errorf("tone = %q, want Confirmed", a.Tone)
	}
	if a.Header != "Strike risk in Edinburgh" {
		t.Errorf("header = %q", a.Header)
	}
	if len(a.Sectors) == 0 {
		t.Error("sectors not tagged")
	}

	stored, err := repo.Get(ctx, a.ID)
	if err != nil || stored == nil {
		t.Fatalf("alert not persisted: %v", err)
	}
}

func TestProcess_SingleSocialReportStaysPendingWithoutEnrichment(t *testing.T) {
	repo := store.NewInMemoryRepository()
	enricher := &fakeEnricher{tone: models.ToneConfirmed, header: "should not appear"}
	o := newTestOrchestrator(repo, enricher)

	alerts, err := o.Process(context.Background(), []models.DisruptionReport{
		report("r1", "Edinburgh", models.MainTypeStrike, "Possible strike rumour", "x", "https://x.example/1", models.TierSocial),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Confidence != 0.3 {
		t.Errorf("confidence = %v, want 0.3", a.Confidence)
	}
	if a.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
	toneCalls, headerCalls := enricher.calls()
	if toneCalls != 0 || headerCalls != 0 {
		t.Errorf("enricher called for pending alert: tone=%d header=%d", toneCalls, headerCalls)
	}
	if a.Tone != "" || a.Header != "" {
		t.Errorf("pending alert has tone=%q header=%q, want empty", a.Tone, a.Header)
	}
}

func TestProcess_MergesIntoExistingAlertAndFlipsToApproved(t *testing.T) {
	repo := store.NewInMemoryRepository()
	enricher := &fakeEnricher{tone: models.ToneDeveloping, header: "h"}
	o := newTestOrchestrator(repo, enricher)
	ctx := context.Background()

	existing := models.Alert{
		ID:         "existing",
		City:       "Edinburgh",
		MainType:   models.MainTypeStrike,
		Title:      "airport baggage handler strike",
		StartDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		Status:     models.StatusPending,
		Confidence: 0.3,
		ConfidenceSources: []models.ConfidenceSource{
			{Source: "x", CredibilityTier: models.TierSocial, URL: "https://x.example/0"},
		},
	}
	if err := repo.Save(ctx, existing); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	alerts, err := o.Process(ctx, []models.DisruptionReport{
		report("r1", "Edinburgh", models.MainTypeStrike, "airport baggage handler strike continues", "caa", "https://caa.example/1", models.TierOfficial),
		report("r2", "Edinburgh", models.MainTypeStrike, "airport baggage handler strike continues today", "gov", "https://gov.example/1", models.TierOfficial),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.ID != "existing" {
		t.Fatalf("created new alert %s instead of merging", a.ID)
	}
	if len(a.ConfidenceSources) != 3 {
		t.Errorf("sources = %d, want 3", len(a.ConfidenceSources))
	}
	// 2 official (0.9 each) + 1 social (0.3): (0.9*2 + 0.3) / 3 = 0.7
	if a.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", a.Confidence)
	}
	if a.Status != models.StatusApproved {
		t.Errorf("status = %s, want approved after crossing threshold", a.Status)
	}
	toneCalls, _ := enricher.calls()
	if toneCalls != 1 {
		t.Errorf("enricher tone calls = %d, want 1 on pending→approved flip", toneCalls)
	}
}

func TestMergeIntoExisting_DeduplicatesBySourceAndURL(t *testing.T) {
	repo := store.NewInMemoryRepository()
	enricher := &fakeEnricher{}
	o := newTestOrchestrator(repo, enricher)
	ctx := context.Background()

	alert := models.Alert{
		ID:        "a1",
		City:      "Edinburgh",
		MainType:  models.MainTypeStrike,
		Title:     "ferry strike",
		Status:    models.StatusApproved,
		StartDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ConfidenceSources: []models.ConfidenceSource{
			{Source: "bbc", CredibilityTier: models.TierMajorNews, URL: "https://bbc.example/1"},
		},
		Confidence: 0.7,
	}
	if err := repo.Save(ctx, alert); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	dup := report("r1", "Edinburgh", models.MainTypeStrike, "ferry strike", "bbc", "https://bbc.example/1", models.TierMajorNews)
	merged, err := o.MergeIntoExisting(ctx, alert, []models.DisruptionReport{dup})
	if err != nil {
		t.Fatalf("MergeIntoExisting() error = %v", err)
	}
	if len(merged.ConfidenceSources) != 1 {
		t.Errorf("sources = %d, want 1 after dedup", len(merged.ConfidenceSources))
	}
	if merged.Confidence != 0.7 {
		t.Errorf("confidence = %v, want unchanged 0.7", merged.Confidence)
	}
}

func TestProcess_OneFailingClusterDoesNotAbortBatch(t *testing.T) {
	repo := &failingRepo{Repository: store.NewInMemoryRepository(), failCity: "Glasgow"}
	enricher := &fakeEnricher{tone: models.ToneEarly, header: "h"}
	o := newTestOrchestrator(repo, enricher)

	alerts, err := o.Process(context.Background(), []models.DisruptionReport{
		report("r1", "Glasgow", models.MainTypeStrike, "rail strike", "bbc", "https://bbc.example/1", models.TierMajorNews),
		report("r2", "Edinburgh", models.MainTypeWeather, "storm warning issued", "met", "https://met.example/1", models.TierOfficial),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want 1 surviving", len(alerts))
	}
	if alerts[0].City != "Edinburgh" {
		t.Errorf("surviving alert city = %s, want Edinburgh", alerts[0].City)
	}
}

func TestProcess_SkipsMalformedReports(t *testing.T) {
	repo := store.NewInMemoryRepository()
	o := newTestOrchestrator(repo, &fakeEnricher{})

	bad := report("r1", "", models.MainTypeStrike, "strike", "bbc", "https://bbc.example/1", models.TierMajorNews)
	alerts, err := o.Process(context.Background(), []models.DisruptionReport{bad})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("Process() produced %d alerts from malformed input, want 0", len(alerts))
	}
}

func TestEnrichmentFailureDegradesToDefaults(t *testing.T) {
	repo := store.NewInMemoryRepository()
	enricher := &fakeEnricher{err: errors.New("llm unavailable")}
	o := newTestOrchestrator(repo, enricher)

	alerts, err := o.Process(context.Background(), []models.DisruptionReport{
		report("r1", "Edinburgh", models.MainTypeStrike, "pilot strike announced", "caa", "https://caa.example/1", models.TierOfficial),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved (1 official = 0.8)", a.Status)
	}
	if a.Tone != models.ToneDeveloping {
		t.Errorf("tone = %q, want Developing fallback", a.Tone)
	}
	if a.Header != a.Title {
		t.Errorf("header = %q, want title fallback %q", a.Header, a.Title)
	}
}

func TestArchiveExpired_Delegates(t *testing.T) {
	repo := store.NewInMemoryRepository()
	o := newTestOrchestrator(repo, &fakeEnricher{})
	ctx := context.Background()

	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	past := models.Alert{
		ID: "past", City: "Edinburgh", MainType: models.MainTypeStrike,
		Title: "over", Status: models.StatusApproved,
		StartDate: now.AddDate(0, 0, -5), EndDate: now.AddDate(0, 0, -2),
	}
	if err := repo.Save(ctx, past); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	n, err := o.ArchiveExpired(ctx, now)
	if err != nil {
		t.Fatalf("ArchiveExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ArchiveExpired() = %d, want 1", n)
	}
}

func TestClusterWindow(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC) }

	t.Run("spans all reports", func(t *testing.T) {
		c := cluster.Cluster{Reports: []models.DisruptionReport{
			{StartDate: d(10), EndDate: d(12)},
			{StartDate: d(8), EndDate: d(14)},
		}}
		start, end := clusterWindow(c)
		if !start.Equal(d(8)) || !end.Equal(d(14)) {
			t.Errorf("clusterWindow() = %v..%v, want 8..14", start, end)
		}
	})

	t.Run("open ended member makes cluster open ended", func(t *testing.T) {
		c := cluster.Cluster{Reports: []models.DisruptionReport{
			{StartDate: d(10), EndDate: d(12)},
			{StartDate: d(11)},
		}}
		_, end := clusterWindow(c)
		if !end.IsZero() {
			t.Errorf("end = %v, want zero for open-ended cluster", end)
		}
	})
}

func TestWhenText(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  string
	}{
		{name: "range", start: d(10), end: d(12), want: "from 10 Mar to 12 Mar"},
		{name: "open ended", start: d(10), want: "from 10 Mar"},
		{name: "single day", start: d(10), end: d(10), want: "from 10 Mar"},
		{name: "no dates", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := whenText(tt.start, tt.end); got != tt.want {
				t.Errorf("whenText() = %q, want %q", got, tt.want)
			}
		})
	}
}

// blockingRepo parks Save until released so a test can cancel the batch
// while a cluster is still in flight.
type blockingRepo struct {
	store.Repository
	started     sync.Once
	saveStarted chan struct{}
	saveRelease chan struct{}
}

func (r *blockingRepo) Save(ctx context.Context, alert models.Alert) error {
	r.started.Do(func() { close(r.saveStarted) })
	<-r.saveRelease
	return r.Repository.Save(ctx, alert)
}

func TestProcess_CancelMidBatchWaitsForInFlightClusters(t *testing.T) {
	repo := &blockingRepo{
		Repository:  store.NewInMemoryRepository(),
		saveStarted: make(chan struct{}),
		saveRelease: make(chan struct{}),
	}
	enricher := &fakeEnricher{tone: models.ToneDeveloping, header: "h"}
	o := New(
		repo,
		enricher,
		cluster.New(cluster.DefaultThreshold),
		confidence.New(nil),
		impact.New(impact.DefaultTables()),
		fakeTagger{},
		lock.NewMutexKeyLock(),
		Config{MaxConcurrentClusters: 1},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Two cities, two clusters: the first occupies the only slot, the
	// second blocks the batch loop in the semaphore acquire.
	reports := []models.DisruptionReport{
		report("r1", "Edinburgh", models.MainTypeStrike, "Ryanair Edinburgh pilot strike", "bbc", "https://bbc.example/1", models.TierMajorNews),
		report("r2", "Glasgow", models.MainTypeStrike, "Subway workers walkout Glasgow", "sky", "https://sky.example/1", models.TierMajorNews),
	}

	go func() {
		<-repo.saveStarted
		cancel()
		close(repo.saveRelease)
	}()

	alerts, err := o.Process(ctx, reports)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
	// The in-flight cluster must have finished before Process returned;
	// its alert is visible without any further synchronization.
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want the in-flight one", len(alerts))
	}
	if got, _ := repo.Get(context.Background(), alerts[0].ID); got == nil {
		t.Error("in-flight alert not persisted")
	}
}

func TestProcess_SourcesCarryCredibilityValues(t *testing.T) {
	repo := store.NewInMemoryRepository()
	enricher := &fakeEnricher{tone: models.ToneEarly, header: "h"}
	o := newTestOrchestrator(repo, enricher)
	ctx := context.Background()

	alerts, err := o.Process(ctx, []models.DisruptionReport{
		report("r1", "Edinburgh", models.MainTypeStrike, "Airport baggage strike announced", "acas", "https://official.example/1", models.TierOfficial),
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("Process() produced %d alerts, want 1", len(alerts))
	}
	if v := alerts[0].ConfidenceSources[0].ConfidenceValue; v != 0.8 {
		t.Fatalf("official source value = %v, want 0.8", v)
	}

	// Merge path stamps the value on appended sources too.
	merged, err := o.Process(ctx, []models.DisruptionReport{
		report("r2", "Edinburgh", models.MainTypeStrike, "Airport baggage strike announced today", "forum", "https://social.example/1", models.TierSocial),
	})
	if err != nil {
		t.Fatalf("Process() merge error = %v", err)
	}
	if len(merged) != 1 || merged[0].ID != alerts[0].ID {
		t.Fatalf("expected merge into the existing alert, got %+v", merged)
	}

	values := map[models.CredibilityTier]float64{}
	for _, s := range merged[0].ConfidenceSources {
		values[s.CredibilityTier] = s.ConfidenceValue
	}
	if values[models.TierOfficial] != 0.8 || values[models.TierSocial] != 0.3 {
		t.Errorf("source values = %v, want official 0.8 and social 0.3", values)
	}
}
