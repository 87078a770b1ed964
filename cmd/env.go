package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cellarworks/tasting-cli/internal/convert"
	"github.com/cellarworks/tasting-cli/internal/cost"
	"github.com/cellarworks/tasting-cli/internal/provider"
	"github.com/cellarworks/tasting-cli/internal/store"
	"github.com/cellarworks/tasting-cli/pkg/anthropic"
	"github.com/cellarworks/tasting-cli/pkg/openai"
)

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "tasting.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		var poolCfg *store.PoolConfig
		if cfg.Store.Pool != nil {
			poolCfg = &store.PoolConfig{
				MaxConns: cfg.Store.Pool.MaxConns,
				MinConns: cfg.Store.Pool.MinConns,
			}
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newProvider builds the configured AI backend wrapped in the retry and
// rate-limit policy. A missing key or name "none" yields the null provider,
// so conversion still produces a placeholder candidate.
func newProvider() provider.Provider {
	policy := provider.Policy{
		MaxAttempts:       cfg.Provider.MaxRetryAttempts,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	}

	switch cfg.Provider.Name {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return provider.NewNull()
		}
		client := anthropic.NewClient(cfg.Anthropic.Key)
		return provider.WithPolicy(provider.NewAnthropic(client, cfg.Anthropic.Model), policy)
	case "openai":
		if cfg.OpenAI.Key == "" {
			return provider.NewNull()
		}
		client := openai.NewClient(cfg.OpenAI.Key, openai.WithModel(cfg.OpenAI.Model))
		return provider.WithPolicy(provider.NewOpenAI(client, cfg.OpenAI.Model), policy)
	default:
		return provider.NewNull()
	}
}

// newOrchestrator wires the conversion pipeline from config.
func newOrchestrator(st store.Store) *convert.Orchestrator {
	pricer := cost.NewCalculator(cfg.Pricing)
	return convert.NewOrchestrator(newProvider(), st, pricer, convert.Options{
		MaxAttempts: cfg.Convert.MaxAttempts,
		Concurrency: cfg.Convert.Concurrency,
	})
}
