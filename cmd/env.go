package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/uzuki-lab/kyotei-cli/internal/fetch"
	"github.com/uzuki-lab/kyotei-cli/internal/predictor"
	"github.com/uzuki-lab/kyotei-cli/internal/store"
)

// predictorEnv holds the initialized store and predictor shared by the
// predict, scan and serve commands.
type predictorEnv struct {
	Store     store.Store
	Predictor *predictor.Predictor
}

// Close releases resources held by the environment.
func (pe *predictorEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "kyotei.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPredictor sets up the store, the source fetcher, and the predictor.
// Callers should defer env.Close().
func initPredictor(ctx context.Context, mode string) (*predictorEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var limiter *rate.Limiter
	if cfg.Fetch.RequestGapSecs > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Fetch.RequestGap()), 1)
	}

	fetcher := fetch.New(nil,
		fetch.DefaultSources(cfg.Fetch.BiyoriBaseURL, cfg.Fetch.OfficialBaseURL),
		fetch.Options{
			Timeout: cfg.Fetch.Timeout(),
			Limiter: limiter,
			Cache:   fetch.NewCache(cfg.Fetch.CacheTTL()),
		})

	p := predictor.New(fetcher, predictor.Options{
		Store:        st,
		TicketConfig: &cfg.Ticket,
	})

	return &predictorEnv{Store: st, Predictor: p}, nil
}
