package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/ai/gemini"
	"github.com/applypilot/applypilot/internal/classify"
	"github.com/applypilot/applypilot/internal/docstore"
	"github.com/applypilot/applypilot/internal/jobsource"
	"github.com/applypilot/applypilot/internal/logger"
	"github.com/applypilot/applypilot/internal/runner"
	"github.com/applypilot/applypilot/internal/secrets"
	"github.com/applypilot/applypilot/internal/store"
	"github.com/applypilot/applypilot/internal/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// stores groups every persistence dependency the engine needs.
type stores struct {
	profiles  store.ProfileStore
	campaigns store.CampaignStore
	ledger    store.ApplicationStore
	documents docstore.Store
	pool      *pgxpool.Pool
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// newStores connects to postgres when a database is configured and falls
// back to the in-memory store otherwise.
func newStores(ctx context.Context, config *Config, log *zap.Logger) (*stores, error) {
	url, err := resolveDatabaseURL(config)
	if err != nil {
		return nil, err
	}

	if url == "" {
		log.Warn("no database configured, using the in-memory store",
			zap.String("hint", "set database.url or DATABASE_URL for durable campaigns"),
		)
		memory := store.NewMemory()
		return &stores{
			profiles:  memory,
			campaigns: memory,
			ledger:    memory,
			documents: docstore.NewMemory(),
		}, nil
	}

	if config.Database != nil && config.Database.RunMigrations {
		if err := postgres.Migrate(url); err != nil {
			return nil, fmt.Errorf("applying migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	pg := postgres.NewStore(pool)
	return &stores{
		profiles:  pg.Profiles,
		campaigns: pg.Campaigns,
		ledger:    pg.Applications,
		documents: pg.Documents,
		pool:      pool,
	}, nil
}

func resolveDatabaseURL(config *Config) (string, error) {
	if config.Database == nil {
		return strings.TrimSpace(viper.GetString("database.url")), nil
	}

	if strings.TrimSpace(config.Database.URLFile) != "" {
		return secrets.Load(secrets.Source{
			Name: "database url",
			File: config.Database.URLFile,
		})
	}

	return strings.TrimSpace(config.Database.URL), nil
}

func newMatcher(ctx context.Context, config *AIConfig, log *zap.Logger) (ai.Matcher, error) {
	if config == nil || config.Gemini == nil {
		return nil, fmt.Errorf("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model)
	if err != nil {
		return nil, err
	}

	matcherLogger := logger.WithFields(log, logger.StringFields(
		logger.StringField{Key: logger.FieldProvider, Value: "gemini"},
		logger.StringField{Key: logger.FieldModel, Value: generator.Model()},
	)...)

	return gemini.NewMatcher(generator, matcherLogger, config.Gemini.MaxLogLength), nil
}

func newJobSourceClient(config *JobSourceConfig, log *zap.Logger) (*jobsource.Client, error) {
	if config == nil || strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("job-source.base-url is required")
	}

	token := ""
	if strings.TrimSpace(config.TokenFile) != "" {
		loaded, err := secrets.Load(secrets.Source{
			Name: "job source token",
			File: config.TokenFile,
		})
		if err != nil {
			return nil, err
		}
		token = loaded
	}

	client := jobsource.New(log, strings.TrimRight(config.BaseURL, "/"), token)
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	return client, nil
}

func newRunner(ctx context.Context, config *Config, st *stores, log *zap.Logger) (*runner.Runner, error) {
	matcher, err := newMatcher(ctx, config.AI, log)
	if err != nil {
		return nil, err
	}

	source, err := newJobSourceClient(config.JobSource, log)
	if err != nil {
		return nil, err
	}

	cfg := runner.Config{Window: runner.BusinessHours()}
	if rc := config.Runner; rc != nil {
		cfg.MaxWorkers = rc.MaxWorkers
		cfg.CallTimeout = rc.CallTimeout
		cfg.Pacing = rc.Pacing
		if rc.Window != nil {
			window := runner.Window{
				StartHour: rc.Window.StartHour,
				EndHour:   rc.Window.EndHour,
				Weekdays:  rc.Window.WeekdaysOnly,
				Location:  time.UTC,
			}
			if rc.Window.Timezone != "" {
				loc, err := time.LoadLocation(rc.Window.Timezone)
				if err != nil {
					return nil, fmt.Errorf("parsing business-hours timezone: %w", err)
				}
				window.Location = loc
			}
			cfg.Window = window
		}
	}

	return runner.New(runner.Deps{
		Campaigns:  st.campaigns,
		Ledger:     st.ledger,
		Documents:  st.documents,
		Source:     source,
		Submitter:  source,
		Matcher:    matcher,
		Classifier: classify.NewHeuristic(),
		Logger:     log,
	}, cfg), nil
}
