package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/capability"
	"github.com/sells-group/wealth-cli/internal/config"
	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
	"github.com/sells-group/wealth-cli/internal/resilience"
	"github.com/sells-group/wealth-cli/internal/source"
	"github.com/sells-group/wealth-cli/internal/store"
	anthropicpkg "github.com/sells-group/wealth-cli/pkg/anthropic"
)

// pipelineEnv holds the store and pipeline needed by run, resume and serve.
type pipelineEnv struct {
	Store    store.Store // nil when store.driver is "none"
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store. It returns nil, nil for
// the "none" driver.
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
			dsn = "wealth.db"
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
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore is initStore for commands that cannot work without one.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("a store is required (set WEALTH_STORE_DRIVER to sqlite or postgres)")
	}
	return st, nil
}

// initPipeline validates config for mode, opens the store and builds the
// Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, sinks ...pipeline.ProgressSink) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicOptions(cfg.Anthropic)...)
	temperature := cfg.Anthropic.Temperature
	llm := capability.NewLLM(client, capability.LLMConfig{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: &temperature,
		Retry: resilience.FromRetryConfig(
			cfg.Anthropic.Retry.MaxAttempts,
			cfg.Anthropic.Retry.InitialBackoffMs,
			cfg.Anthropic.Retry.MaxBackoffMs,
		),
	})

	loader := source.NewLoader(source.Options{
		Charset:    cfg.Sources.Charset,
		SheetName:  cfg.Sources.Sheet,
		FTPTimeout: time.Duration(cfg.Sources.FTPTimeoutSecs) * time.Second,
		FTPRetry:   resilience.FromRetryConfig(3, 1000, 10000),
	})

	deps := pipeline.Deps{Loader: loader, Catalogue: loader, Summarizer: llm}
	if cfg.Pipeline.ExtractIDs {
		deps.Extractor = llm
	}

	p, err := buildPipeline(cfg, deps, st, sinks...)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// buildPipeline maps configuration onto the pipeline. st may be nil.
func buildPipeline(c *config.Config, deps pipeline.Deps, st store.Store, sinks ...pipeline.ProgressSink) (*pipeline.Pipeline, error) {
	pcfg, err := pipelineConfig(c)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithSinks(append([]pipeline.ProgressSink{pipeline.LogSink{}}, sinks...)...)}
	if st != nil && c.Pipeline.Checkpoint {
		opts = append(opts, pipeline.WithStore(st))
	} else {
		zap.L().Debug("checkpointing disabled")
	}
	return pipeline.New(pcfg, deps, opts...), nil
}

func pipelineConfig(c *config.Config) (pipeline.Config, error) {
	pcfg := pipeline.Config{
		Sources: pipeline.Sources{
			Transactions: c.Sources.Transactions,
			Demographics: c.Sources.Demographics,
			Income:       c.Sources.Income,
			Holdings:     c.Sources.Holdings,
			Catalogue:    c.Sources.Catalogue,
		},
		IDColumn:          c.Sources.IDColumn,
		CapabilityTimeout: c.Pipeline.CapabilityTimeout(),
		Scope:             pipeline.ScopePolicy(c.Pipeline.ScopePolicy),
		Enumerate:         pipeline.Enumeration(c.Pipeline.RenderEnumerate),
	}
	for _, id := range c.Sources.DefaultIDs {
		pcfg.DefaultIDs = append(pcfg.DefaultIDs, model.ParseCustomerIDs(id)...)
	}

	if c.Sources.ColumnsFile != "" {
		cols, err := pipeline.LoadColumns(c.Sources.ColumnsFile)
		if err != nil {
			return pipeline.Config{}, err
		}
		pcfg.Columns = cols
	}
	return pcfg, nil
}

func anthropicOptions(c config.AnthropicConfig) []anthropicpkg.ClientOption {
	var opts []anthropicpkg.ClientOption
	if c.RateLimitRPS > 0 {
		opts = append(opts, anthropicpkg.WithRateLimit(c.RateLimitRPS, c.RateBurst))
	}
	if c.BaseURL != "" {
		opts = append(opts, anthropicpkg.WithBaseURL(c.BaseURL))
	}
	return opts
}
