package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gzhole/promptshield/internal/attack"
	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/config"
	"github.com/gzhole/promptshield/internal/detect"
	"github.com/gzhole/promptshield/internal/logging"
	"github.com/gzhole/promptshield/internal/pipeline"
	"github.com/gzhole/promptshield/internal/policy"
	"github.com/gzhole/promptshield/internal/store"
	"github.com/gzhole/promptshield/internal/vault"
	"github.com/gzhole/promptshield/internal/verify"
)

// runtime is everything a command needs to run submissions.
type runtime struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    store.Store
	pipeline *pipeline.Pipeline
	packs    []policy.PackInfo
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

func openStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.Store.Ephemeral {
		return store.NewMemoryStore(), nil
	}
	st, err := store.OpenJSONL(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	if n := st.Skipped(); n > 0 {
		log.Warn().Int("lines", n).Str("path", cfg.Store.Path).Msg("skipped unreadable records")
	}
	return st, nil
}

// openRuntime wires the store, policy, secondary model and pipeline from the
// config. ephemeral forces an in-memory store.
func openRuntime(ephemeral bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if ephemeral {
		cfg.Store.Ephemeral = true
	}
	log := newLogger(cfg)

	engine, packs, err := policy.NewEngineFromFiles(cfg.Policy.Path, cfg.Policy.PacksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	engine.SetLogger(log)
	for _, p := range packs {
		if p.Err != nil {
			log.Warn().Err(p.Err).Str("pack", p.Name).Msg("policy pack not loaded")
		}
	}

	v := cfg.Verification
	model, err := verify.NewModel(v.Provider, v.BaseURL, v.APIKey(), v.Model)
	if err != nil {
		return nil, err
	}
	if model == nil {
		log.Info().Msg("secondary model not configured, verifications will be pending")
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Components{
		Scanner:  attack.Default(),
		Detector: detect.New(catalog.Default(), vault.New()),
		Engine:   engine,
		Store:    st,
		Verifier: verify.New(model, v.Timeout),
	}, pipeline.Options{
		PendingTimeout: cfg.Pipeline.PendingTimeout,
		RecentPrompts:  cfg.Pipeline.RecentPrompts,
		LookupWindow:   v.LookupWindow,
		Logger:         &log,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, log: log, store: st, pipeline: p, packs: packs}, nil
}

func (r *runtime) Close() {
	r.pipeline.Close()
	if err := r.store.Close(); err != nil {
		r.log.Error().Err(err).Msg("failed to close record store")
	}
}
