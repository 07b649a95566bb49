package main

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aleister1102/driftwatch/internal/backlog"
	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/dedup"
	"github.com/aleister1102/driftwatch/internal/fetcher"
	"github.com/aleister1102/driftwatch/internal/logger"
	"github.com/aleister1102/driftwatch/internal/notifier"
	"github.com/aleister1102/driftwatch/internal/session"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/aleister1102/driftwatch/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.GlobalConfig
	log        *logger.Logger
	configErr  error

	store *store.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.GlobalConfig, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.LoadGlobalConfig(path, zerolog.Nop())
		if err != nil {
			c.configErr = err
			return
		}
		if err := config.ValidateConfig(cfg); err != nil {
			c.configErr = err
			return
		}
		log, err := logger.New(cfg.LogConfig)
		if err != nil {
			c.configErr = common.WrapError(err, "initialize logger")
			return
		}
		c.config = cfg
		c.log = log
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() zerolog.Logger {
	if c.log == nil {
		return zerolog.Nop()
	}
	return *c.log.GetZerolog()
}

func (c *commandContext) openStore(ctx context.Context) (*store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.StorageConfig, c.logger())
	if err != nil {
		return nil, err
	}
	c.store = st
	return st, nil
}

func (c *commandContext) close() error {
	var ec common.ErrorCollector
	if c.store != nil {
		ec.AddWithContext(c.store.Close(), "close store")
		c.store = nil
	}
	if c.log != nil {
		ec.AddWithContext(c.log.Close(), "close logger")
		c.log = nil
	}
	return ec.Error()
}

func (c *commandContext) newNotifier() (workflow.Notifier, error) {
	if !c.config.NotificationConfig.Enabled {
		return notifier.Nop{}, nil
	}
	n, err := notifier.NewShoutrrr(c.config.NotificationConfig, c.logger())
	if err != nil {
		return nil, err
	}
	return n, nil
}

// newDeps wires the workflow collaborators around an open store. Session ids
// are seeded from storage so they never go backwards across restarts.
func (c *commandContext) newDeps(ctx context.Context, metrics workflow.Metrics) (workflow.Deps, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return workflow.Deps{}, err
	}
	sessions := session.NewCorrelator(0)
	if err := sessions.Seed(ctx, st); err != nil {
		return workflow.Deps{}, err
	}
	n, err := c.newNotifier()
	if err != nil {
		return workflow.Deps{}, err
	}
	return workflow.Deps{
		Store:    st,
		Fetcher:  fetcher.New(c.config.FetchConfig, c.logger()),
		Notifier: n,
		Sessions: sessions,
		Gate:     dedup.NewGate(c.logger()),
		Metrics:  metrics,
	}, nil
}

func (c *commandContext) withOperator(ctx context.Context, fn func(*workflow.Operator) error) error {
	deps, err := c.newDeps(ctx, nil)
	if err != nil {
		return err
	}
	op, err := workflow.NewOperator(c.config.SweepConfig, deps, c.logger())
	if err != nil {
		return err
	}
	return fn(op)
}

func (c *commandContext) withBacklog(ctx context.Context, fn func(*backlog.Engine) error) error {
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	return fn(backlog.NewEngine(st, c.config.SweepConfig, c.logger()))
}
