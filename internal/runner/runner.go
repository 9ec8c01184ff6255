// Package runner advances all active campaigns by zero or more application
// attempts per tick. Scheduled ticks and manual run-now requests funnel
// through the same path so the trigger source never changes the outcome.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/campaign"
	"github.com/applypilot/applypilot/internal/classify"
	"github.com/applypilot/applypilot/internal/docstore"
	"github.com/applypilot/applypilot/internal/jobsource"
	"github.com/applypilot/applypilot/internal/logger"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/applypilot/applypilot/internal/utils"
	"go.uber.org/zap"
)

const (
	defaultMaxWorkers  = 4
	defaultCallTimeout = 30 * time.Second
)

// Deps aggregates the collaborators the dispatch loop drives.
type Deps struct {
	Campaigns  store.CampaignStore
	Ledger     store.ApplicationStore
	Documents  docstore.Store
	Source     jobsource.Source
	Submitter  jobsource.Submitter
	Matcher    ai.Matcher
	Classifier classify.Strategy
	Logger     *zap.Logger
}

// Config tunes the loop. Zero values fall back to defaults.
type Config struct {
	MaxWorkers  int
	CallTimeout time.Duration
	Window      Window
	Pacing      time.Duration
}

// Result summarizes one tick.
type Result struct {
	Processed int            `json:"processed"`
	Sent      map[string]int `json:"sent"`
}

type Runner struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	// rotates the starting campaign so no single campaign is starved.
	offset atomic.Uint64
}

func New(deps Deps, cfg Config) *Runner {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultMaxWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Runner{deps: deps, cfg: cfg, now: time.Now}
}

// RunNow performs a manual tick. Identical to a scheduled one.
func (r *Runner) RunNow(ctx context.Context) (*Result, error) {
	return r.Tick(ctx)
}

// Tick advances every active campaign once. Campaigns of different profiles
// run concurrently under a worker bound; attempts within one campaign stay
// sequential because the day quota is shared mutable state.
func (r *Runner) Tick(ctx context.Context) (*Result, error) {
	now := r.now()
	result := &Result{Sent: make(map[string]int)}

	if !r.cfg.Window.Contains(now) {
		r.deps.Logger.Info("outside the dispatch window, deferring submissions",
			zap.Time("now", now),
		)
		return result, nil
	}

	campaigns, err := r.deps.Campaigns.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}

	if len(campaigns) == 0 {
		return result, nil
	}

	// Round-robin: rotate the start index per tick.
	start := int(r.offset.Add(1)-1) % len(campaigns)
	ordered := append(campaigns[start:], campaigns[:start]...)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.cfg.MaxWorkers)
	)

	for _, c := range ordered {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(c *campaign.Campaign) {
			defer wg.Done()
			defer func() { <-sem }()

			sent := r.processCampaign(ctx, c)

			mu.Lock()
			result.Processed++
			if sent > 0 {
				result.Sent[c.ID] = sent
			}
			mu.Unlock()
		}(c)
	}

	wg.Wait()

	r.deps.Logger.Info("tick finished",
		zap.Int("campaigns_processed", result.Processed),
		zap.Int("campaigns_with_sends", len(result.Sent)),
	)

	return result, nil
}

// processCampaign runs one campaign for one tick and returns the number of
// applications sent. A failure of one attempt never aborts the rest.
func (r *Runner) processCampaign(ctx context.Context, c *campaign.Campaign) int {
	log := r.deps.Logger.With(zap.String(logger.FieldCampaign, c.ID))

	acquired, err := r.deps.Campaigns.TryAcquire(ctx, c.ID)
	if err != nil {
		log.Warn("acquiring campaign lock", zap.Error(err))
		return 0
	}
	if !acquired {
		log.Debug("campaign already being dispatched, skipping")
		return 0
	}
	defer func() {
		if err := r.deps.Campaigns.Release(ctx, c.ID); err != nil {
			log.Warn("releasing campaign lock", zap.Error(err))
		}
	}()

	// Reload under the lock: status or counters may have moved since the
	// listing.
	c, err = r.deps.Campaigns.Get(ctx, c.ID)
	if err != nil {
		log.Warn("reloading campaign", zap.Error(err))
		return 0
	}

	now := r.now()

	if c.Status != campaign.StatusActive {
		return 0
	}

	if c.Expired(now) {
		if err := c.Transition(campaign.StatusCompleted, now); err == nil {
			if err := r.deps.Campaigns.UpdateStatus(ctx, c.ID, campaign.StatusCompleted); err != nil {
				log.Warn("completing campaign", zap.Error(err))
			} else {
				log.Info("campaign completed", zap.Time("ends_at", c.EndsAt))
			}
		}
		return 0
	}

	remaining := c.RemainingQuota(now)
	if remaining == 0 {
		log.Debug("day quota exhausted, skipping until next day bucket",
			zap.Int("sent_today", c.SentToday),
			zap.Int("max_per_day", c.MaxPerDay),
		)
		return 0
	}

	postings, err := r.searchPostings(ctx, c)
	if err != nil {
		log.Warn("job source search failed, skipping campaign this tick", zap.Error(err))
		return 0
	}
	if len(postings) == 0 {
		log.Debug("no candidate postings this tick")
		return 0
	}

	cv, err := r.deps.Documents.GetDocument(ctx, c.Snapshot.CVDocumentID)
	if err != nil {
		log.Warn("loading cv document, skipping campaign this tick", zap.Error(err))
		return 0
	}

	// One CV serves every attempt of the tick, so let the provider pin it
	// once instead of resending it per posting.
	cacheKey := ""
	if warmer, ok := r.deps.Matcher.(ai.CacheWarmer); ok {
		key, err := warmer.WarmCV(ctx, cv.ID, cv.FileName, cv.Text)
		if err != nil {
			log.Debug("cv cache unavailable, sending the cv inline", zap.Error(err))
		} else {
			cacheKey = key
		}
	}

	sent := 0
	for _, posting := range postings {
		if sent >= remaining {
			break
		}
		if ctx.Err() != nil {
			break
		}

		// Cooperative cancellation: a cancel or pause landing mid-tick
		// cuts the loop before the next attempt.
		fresh, err := r.deps.Campaigns.Get(ctx, c.ID)
		if err != nil || fresh.Status != campaign.StatusActive {
			log.Info("campaign no longer active, cutting tick short")
			break
		}

		if r.attempt(ctx, log, c, cv, posting, cacheKey) {
			c.RecordSent(r.now())
			if err := r.deps.Campaigns.SaveCounters(ctx, c); err != nil {
				log.Warn("persisting quota counters", zap.Error(err))
			}
			sent++
		}

		if err := utils.WaitFor(ctx, r.cfg.Pacing); err != nil {
			break
		}
	}

	return sent
}

func (r *Runner) searchPostings(ctx context.Context, c *campaign.Campaign) ([]*jobsource.Posting, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	return r.deps.Source.Search(ctx, &jobsource.Criteria{
		Titles:       c.Snapshot.PreferredJobTitles,
		Zone:         string(c.Snapshot.TargetZone),
		ContractType: string(c.Snapshot.ContractType),
	})
}

// attempt considers one posting and returns true when an application was
// sent. A non-match records nothing and does not touch the quota.
func (r *Runner) attempt(ctx context.Context, log *zap.Logger, c *campaign.Campaign, cv *docstore.Document, posting *jobsource.Posting, cacheKey string) bool {
	now := r.now()
	target := posting.Target()

	postingDoc := &docstore.Document{
		ID:       posting.ID,
		FileName: posting.FileName,
		FileType: docstore.FileTypeJobOffer,
		Text:     posting.Text,
	}

	pair, err := r.deps.Classifier.Classify([]*docstore.Document{cv, postingDoc})
	if err != nil {
		log.Warn("classification failed",
			zap.String("posting_id", posting.ID),
			zap.Error(err),
		)
		r.recordFailure(ctx, log, c.ID, target, err)
		return false
	}

	verdict, err := r.evaluate(ctx, c, pair, cacheKey)
	if err != nil {
		log.Warn("compatibility matching failed",
			zap.String("posting_id", posting.ID),
			zap.Error(err),
		)
		r.recordFailure(ctx, log, c.ID, target, err)
		return false
	}

	if !verdict.Compatible {
		log.Info("posting not compatible, skipping",
			zap.String("posting_id", posting.ID),
			zap.Int("score", verdict.Score),
		)
		return false
	}

	app := campaign.NewApplication(c.ID, target, now)
	if err := r.deps.Ledger.Append(ctx, app); err != nil {
		log.Warn("opening ledger row", zap.Error(err))
		return false
	}

	if err := r.submit(ctx, posting, &c.Snapshot, verdict.CoverLetter); err != nil {
		log.Warn("submission failed",
			zap.String("posting_id", posting.ID),
			zap.Error(err),
		)
		if err := r.deps.Ledger.MarkOutcome(ctx, app.ID, campaign.ApplicationFailed, err.Error()); err != nil {
			log.Warn("recording failed outcome", zap.Error(err))
		}
		return false
	}

	if err := r.deps.Ledger.MarkOutcome(ctx, app.ID, campaign.ApplicationSent, ""); err != nil {
		log.Warn("recording sent outcome", zap.Error(err))
	}

	log.Info("application sent",
		zap.String("posting_id", posting.ID),
		zap.String("target", target.Render()),
		zap.Int("score", verdict.Score),
	)

	return true
}

func (r *Runner) evaluate(ctx context.Context, c *campaign.Campaign, pair *classify.Result, cacheKey string) (*ai.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	return r.deps.Matcher.Evaluate(ctx, &ai.Input{
		CVText:       pair.CV.Text,
		JobText:      pair.Job.Text,
		ContextNotes: c.Snapshot.ContextNotes,
		CVCacheKey:   cacheKey,
	})
}

func (r *Runner) submit(ctx context.Context, posting *jobsource.Posting, profile *campaign.Profile, coverLetter string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	return r.deps.Submitter.Submit(ctx, posting, profile, coverLetter)
}

func (r *Runner) recordFailure(ctx context.Context, log *zap.Logger, campaignID string, target campaign.TargetName, cause error) {
	app := campaign.FailedApplication(campaignID, target, cause.Error(), r.now())
	if err := r.deps.Ledger.Append(ctx, app); err != nil {
		log.Warn("recording failed attempt", zap.Error(err))
	}
}
