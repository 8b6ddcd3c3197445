package cli

import (
	"context"
	"errors"

	"github.com/crynn/crynn/internal/config"
	"github.com/crynn/crynn/internal/infrastructure/headless"
	"github.com/crynn/crynn/internal/logging"
	"github.com/crynn/crynn/internal/shell"
	"github.com/crynn/crynn/internal/tracing"
)

// runBrowse starts the shell and blocks until the context is canceled.
func runBrowse(ctx context.Context, url string, trace bool) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	ctx = logging.WithContext(ctx, e.log)
	log := logging.FromContext(ctx)

	store, closeStore, err := openStore(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tracer := tracing.Noop()
	if trace {
		tracer = tracing.New(&e.log)
	}

	sh := shell.New(e.cfg, headless.NewFactory(), store, tracer)
	if err := sh.Start(ctx); err != nil {
		return err
	}
	defer sh.Close(context.WithoutCancel(ctx))

	if url != "" {
		if active := sh.ActiveTab(); active != nil {
			sh.Navigate(ctx, active.ID, url)
		}
	}

	// Propagate live config edits into the running shell.
	e.manager.OnConfigChange(func(cfg *config.Config) {
		sh.Dispatch(func() {
			sh.SetBlocking(ctx, cfg.Filtering.Enabled)
		})
	})
	if err := e.manager.Watch(); err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	}

	log.Info().Str("url", url).Msg("crynn running, press Ctrl+C to exit")

	err = sh.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
