package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/assist"
	"github.com/enerdoc/facture-cli/internal/cost"
	"github.com/enerdoc/facture-cli/internal/ocr"
	"github.com/enerdoc/facture-cli/internal/pipeline"
	"github.com/enerdoc/facture-cli/internal/profile"
	"github.com/enerdoc/facture-cli/internal/store"
	anthropicpkg "github.com/enerdoc/facture-cli/pkg/anthropic"
	sfpkg "github.com/enerdoc/facture-cli/pkg/salesforce"
)

// pipelineEnv holds the initialized store, clients and pipeline shared
// by the extract/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Profiles *profile.Registry
	Tracker  *cost.Tracker
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "facture.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (FACTURE_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}

// initProfiles returns the built-in supplier registry, extended from the
// profiles file when one is configured.
func initProfiles() (*profile.Registry, error) {
	reg := profile.NewRegistry()
	if cfg.Profiles.Path != "" {
		if err := reg.Load(cfg.Profiles.Path); err != nil {
			return nil, eris.Wrapf(err, "load profiles from %s", cfg.Profiles.Path)
		}
		zap.L().Info("supplier profiles loaded",
			zap.String("path", cfg.Profiles.Path),
			zap.Int("profiles", len(reg.Names())),
		)
	}
	return reg, nil
}

// initPipeline sets up the store, OCR extractor, profiles and the assist
// tier, and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	profiles, err := initProfiles()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	extractor, err := ocr.NewExtractor(cfg.OCR, cfg.Mistral.APIKey)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	calc := cost.NewCalculator(cfg.Pricing)
	tracker := &cost.Tracker{}

	var assister *assist.Assister
	if cfg.Assist.Enabled {
		if cfg.Anthropic.Key == "" {
			_ = st.Close()
			return nil, eris.New("assist tier enabled but FACTURE_ANTHROPIC_KEY is not set")
		}
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
		assister = assist.New(anthropicClient, st, calc, tracker, assist.Config{
			Enabled:        true,
			Model:          cfg.Assist.Model,
			MaxTokens:      cfg.Assist.MaxTokens,
			BatchThreshold: cfg.Assist.BatchThreshold,
			Concurrency:    cfg.Assist.Concurrency,
			CacheTTL:       cfg.Assist.CacheTTL(),
			MaxDocChars:    cfg.Assist.MaxDocChars,
		})
		zap.L().Info("assist tier enabled", zap.String("model", cfg.Assist.Model))
	}

	p := pipeline.New(cfg, st, extractor, profiles, assister, tracker)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Profiles: profiles,
		Tracker:  tracker,
	}, nil
}
