package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/applypilot/applypilot/internal/classify"
	"github.com/applypilot/applypilot/internal/docstore"
	"github.com/applypilot/applypilot/internal/jobsource"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	postings []*jobsource.Posting
	err      error
}

func (f *fakeSource) Search(_ context.Context, _ *jobsource.Criteria) ([]*jobsource.Posting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.postings, nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []string
	failFor   map[string]error
}

func (f *fakeSubmitter) Submit(_ context.Context, posting *jobsource.Posting, _ *campaign.Profile, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFor[posting.ID]; ok {
		return err
	}
	f.submitted = append(f.submitted, posting.ID)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

// fakeMatcher scores a posting by its text: "good" postings clear the
// threshold, "bad" ones do not, "broken" ones fail the call.
type fakeMatcher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeMatcher) Evaluate(_ context.Context, input *ai.Input) (*ai.Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	switch input.JobText {
	case "broken":
		return nil, &ai.NotJSONError{Raw: "oops", Err: errors.New("no json object found in response")}
	case "bad":
		return &ai.Verdict{Score: 30, Compatible: false}, nil
	default:
		return &ai.Verdict{Score: 88, Compatible: true, CoverLetter: "Dear team"}, nil
	}
}

type fixture struct {
	store     *store.Memory
	docs      *docstore.Memory
	source    *fakeSource
	submitter *fakeSubmitter
	matcher   *fakeMatcher
	runner    *Runner
}

func posting(id, text string) *jobsource.Posting {
	return &jobsource.Posting{
		ID:       id,
		Name:     "Posting " + id,
		Text:     text,
		FileName: "offer_" + id + ".txt",
	}
}

func newFixture(t *testing.T, postings []*jobsource.Posting) *fixture {
	t.Helper()

	f := &fixture{
		store:     store.NewMemory(),
		docs:      docstore.NewMemory(),
		source:    &fakeSource{postings: postings},
		submitter: &fakeSubmitter{},
		matcher:   &fakeMatcher{},
	}

	f.docs.Put(&docstore.Document{
		ID:       "doc-cv",
		FileName: "cv.pdf",
		FileType: docstore.FileTypeCV,
		Text:     "ten years of everything",
	})

	f.runner = New(Deps{
		Campaigns:  f.store,
		Ledger:     f.store,
		Documents:  f.docs,
		Source:     f.source,
		Submitter:  f.submitter,
		Matcher:    f.matcher,
		Classifier: classify.NewHeuristic(),
		Logger:     zap.NewNop(),
	}, Config{})

	return f
}

func (f *fixture) launch(t *testing.T, durationDays, maxPerDay int) *campaign.Campaign {
	t.Helper()

	profile := &campaign.Profile{
		UserID:             "user-1",
		PreferredJobTitles: []string{"Backend Engineer"},
		FirstName:          "Ada",
		LastName:           "Lovelace",
		ContactEmail:       "ada@example.com",
		CVDocumentID:       "doc-cv",
	}
	c, err := campaign.New(profile, durationDays, maxPerDay, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), c))
	return c
}

func TestTickSendsCompatibleApplications(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{
		posting("p1", "good"),
		posting("p2", "bad"),
		posting("p3", "good"),
	})
	c := f.launch(t, 30, 10)

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, result.Sent[c.ID])
	assert.Equal(t, 2, f.submitter.count())

	stored, err := f.store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalSent)
	assert.Equal(t, 2, stored.SentToday)

	// The non-compatible posting leaves no ledger row and eats no quota.
	sent, err := f.store.CountByStatus(context.Background(), c.ID, campaign.ApplicationSent)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	apps, err := f.store.ListByCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestTickStopsAtDailyQuota(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{
		posting("p1", "good"),
		posting("p2", "good"),
		posting("p3", "good"),
	})
	c := f.launch(t, 30, 1)

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent[c.ID])
	assert.Equal(t, 1, f.submitter.count())

	// A second tick on the same day sends nothing more.
	result, err = f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Sent)
	assert.Equal(t, 1, f.submitter.count())

	stored, err := f.store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalSent)
}

func TestConcurrentTicksNeverOvershootQuota(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{
		posting("p1", "good"),
		posting("p2", "good"),
	})
	c := f.launch(t, 30, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.runner.RunNow(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.submitter.count())

	stored, err := f.store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalSent)

	sent, err := f.store.CountByStatus(context.Background(), c.ID, campaign.ApplicationSent)
	require.NoError(t, err)
	assert.Equal(t, stored.TotalSent, sent)
}

func TestTickRecordsMatcherFailuresAndContinues(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{
		posting("p1", "broken"),
		posting("p2", "good"),
	})
	c := f.launch(t, 30, 10)

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent[c.ID])

	failed, err := f.store.CountByStatus(context.Background(), c.ID, campaign.ApplicationFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	sent, err := f.store.CountByStatus(context.Background(), c.ID, campaign.ApplicationSent)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Failures never count against the quota.
	stored, err := f.store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalSent)
}

func TestTickMarksSubmissionFailures(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{posting("p1", "good")})
	f.submitter.failFor = map[string]error{"p1": errors.New("upstream said no")}
	c := f.launch(t, 30, 10)

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Sent)

	failed, err := f.store.CountByStatus(context.Background(), c.ID, campaign.ApplicationFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	apps, err := f.store.ListByCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Contains(t, apps[0].Fault, "upstream said no")

	stored, err := f.store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TotalSent)
}

func TestTickSkipsPausedCampaigns(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{posting("p1", "good")})
	c := f.launch(t, 30, 10)
	require.NoError(t, f.store.UpdateStatus(context.Background(), c.ID, campaign.StatusPaused))

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, f.submitter.count())
}

func TestTickCompletesExpiredCampaigns(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{posting("p1", "good")})
	c := f.launch(t, 30, 10)

	// Move the clock past the end date.
	f.runner.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Sent)
	assert.Zero(t, f.submitter.count())

	stored, err := f.store.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, stored.Status)
}

func TestTickDefersOutsideDispatchWindow(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{posting("p1", "good")})
	f.launch(t, 30, 10)

	f.runner.cfg.Window = BusinessHours()
	// Sunday, well outside business hours.
	f.runner.now = func() time.Time {
		return time.Date(2026, time.March, 8, 3, 0, 0, 0, time.UTC)
	}

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, f.submitter.count())
}

// warmingMatcher also implements ai.CacheWarmer.
type warmingMatcher struct {
	fakeMatcher
	mu        sync.Mutex
	warms     int
	lastKey   string
	warmedDoc string
}

func (f *warmingMatcher) WarmCV(_ context.Context, documentID, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warms++
	f.warmedDoc = documentID
	return "caches/" + documentID, nil
}

func (f *warmingMatcher) Evaluate(ctx context.Context, input *ai.Input) (*ai.Verdict, error) {
	f.mu.Lock()
	f.lastKey = input.CVCacheKey
	f.mu.Unlock()
	return f.fakeMatcher.Evaluate(ctx, input)
}

func TestTickWarmsCVCacheOncePerCampaign(t *testing.T) {
	f := newFixture(t, []*jobsource.Posting{
		posting("p1", "good"),
		posting("p2", "good"),
	})
	matcher := &warmingMatcher{}
	f.runner.deps.Matcher = matcher
	f.launch(t, 30, 10)

	_, err := f.runner.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, matcher.warms)
	assert.Equal(t, "doc-cv", matcher.warmedDoc)
	assert.Equal(t, "caches/doc-cv", matcher.lastKey)
}

func TestTickSurvivesSourceFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.source.err = errors.New("catalog unreachable")
	c := f.launch(t, 30, 10)

	result, err := f.runner.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Sent)

	apps, err := f.store.ListByCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestWindowContains(t *testing.T) {
	window := BusinessHours()

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "weekday morning", at: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), want: true},
		{name: "weekday before opening", at: time.Date(2026, time.March, 10, 8, 59, 0, 0, time.UTC), want: false},
		{name: "weekday at close", at: time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC), want: false},
		{name: "saturday", at: time.Date(2026, time.March, 14, 11, 0, 0, 0, time.UTC), want: false},
		{name: "sunday", at: time.Date(2026, time.March, 15, 11, 0, 0, 0, time.UTC), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, window.Contains(tc.at))
		})
	}

	var always Window
	assert.True(t, always.Contains(time.Date(2026, time.March, 15, 3, 0, 0, 0, time.UTC)))
}
