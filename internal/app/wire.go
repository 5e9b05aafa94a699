//go:build wireinject
// +build wireinject

package app

import (
	"context"
	"io"

	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/lingva/internal/achievement"
	"github.com/abhisek/lingva/internal/assessment"
	"github.com/abhisek/lingva/internal/catalog"
	"github.com/abhisek/lingva/internal/config"
	"github.com/abhisek/lingva/internal/keylock"
	"github.com/abhisek/lingva/internal/learning"
	"github.com/abhisek/lingva/internal/logging"
	"github.com/abhisek/lingva/internal/progression"
	"github.com/abhisek/lingva/internal/spacedrep"
	"github.com/abhisek/lingva/internal/store"
)

var infraSet = wire.NewSet(
	logging.New,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
	provideStore,
	wire.Bind(new(store.Backend), new(*store.Store)),
	keylock.New,
)

var catalogSet = wire.NewSet(
	provideCatalog,
	wire.Bind(new(spacedrep.WordLookup), new(*catalog.Catalog)),
	wire.Bind(new(progression.LessonSource), new(*catalog.Catalog)),
	wire.Bind(new(assessment.Definitions), new(*catalog.Catalog)),
	wire.Bind(new(achievement.Definitions), new(*catalog.Catalog)),
	wire.Bind(new(learning.Catalog), new(*catalog.Catalog)),
)

var serviceSet = wire.NewSet(
	spacedrep.NewService,
	progression.NewService,
	assessment.NewService,
	achievement.NewSynchronizer,
	learning.NewCoordinator,
	provideSweeper,
)

// Initialize builds the application container using Wire.
func Initialize(ctx context.Context, cfg *config.Config, out io.Writer) (*Container, func(), error) {
	wire.Build(
		infraSet,
		catalogSet,
		serviceSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
