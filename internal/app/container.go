// Package app assembles lingva's services.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/catalog"
	"github.com/abhisek/lingva/internal/config"
	"github.com/abhisek/lingva/internal/learning"
	"github.com/abhisek/lingva/internal/progression"
	"github.com/abhisek/lingva/internal/spacedrep"
	"github.com/abhisek/lingva/internal/store"
	"github.com/abhisek/lingva/internal/sweeper"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config       *config.Config
	Logger       *logrus.Logger
	Store        *store.Store
	Catalog      *catalog.Catalog
	Reviews      *spacedrep.Service
	Blocks       *progression.Service
	Attempts     *assessment.Service
	Achievements *achievement.Synchronizer
	Learning     *learning.Coordinator
	Sweeper      *sweeper.Sweeper
}

func provideStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*store.Store, func(), error) {
	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database: %w", err)
	}
	st, err := store.Open(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("driver", cfg.Database.Driver).Debug("store opened")
	return st, func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}, nil
}

func provideCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	return catalog.Load(cfg.Catalog.Path)
}

func provideSweeper(coord *learning.Coordinator, cfg *config.Config, log logrus.FieldLogger) *sweeper.Sweeper {
	return sweeper.New(coord, cfg.Sweeper.Interval, log)
}
