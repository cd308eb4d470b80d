package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listing-dedupe/internal/dedupe"
	"github.com/sells-group/listing-dedupe/internal/store"
	"github.com/sells-group/listing-dedupe/pkg/anthropic"
)

// initStore opens and migrates the configured store. It returns nil when the
// driver is "none".
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "listings-dedupe.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// engineEnv bundles the engine with the oracle whose usage it reports.
type engineEnv struct {
	Engine *dedupe.Engine
	Oracle *dedupe.ClaudeOracle // nil when deep analysis is off
}

// LogUsage logs the token usage and estimated cost of the oracle, if any.
func (e *engineEnv) LogUsage() {
	if e.Oracle == nil {
		return
	}
	e.Oracle.Usage().LogCost(cfg.Anthropic.Model, "dedupe_scan")
}

// initEngine builds the engine from cfg. Deep analysis is wired only when an
// API key is configured and the oracle is enabled.
func initEngine() (*engineEnv, error) {
	env := &engineEnv{}

	var analyzer *dedupe.DeepAnalyzer
	if cfg.OracleAvailable() {
		client := anthropic.NewClient(cfg.Anthropic.Key)
		env.Oracle = dedupe.NewClaudeOracle(client, cfg.Anthropic)
		analyzer = dedupe.NewDeepAnalyzer(env.Oracle, dedupe.AnalyzerOptionsFrom(cfg.Oracle))
	} else {
		zap.L().Warn("deep analysis disabled; pairs above the threshold get fallback verdicts",
			zap.Bool("oracle_enabled", cfg.Oracle.Enabled),
			zap.Bool("api_key_set", cfg.Anthropic.Key != ""),
		)
	}

	engine, err := dedupe.NewEngine(cfg.Dedupe, analyzer, cfg.Oracle.Concurrency)
	if err != nil {
		return nil, err
	}
	env.Engine = engine
	return env, nil
}

// loadOverride reads a per-run config patch from a YAML file.
func loadOverride(path string) (*dedupe.ConfigPatch, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read override file")
	}
	var patch dedupe.ConfigPatch
	if err := yaml.Unmarshal(data, &patch); err != nil {
		return nil, eris.Wrap(err, "parse override file")
	}
	return &patch, nil
}
