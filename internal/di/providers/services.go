package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readtrackapp/readtrack-server/internal/clock"
	"github.com/readtrackapp/readtrack-server/internal/config"
	"github.com/readtrackapp/readtrack-server/internal/logger"
	"github.com/readtrackapp/readtrack-server/internal/service"
	"github.com/readtrackapp/readtrack-server/internal/validation"
)

// ProvideClock provides the wall clock time source.
func ProvideClock(i do.Injector) (clock.Clock, error) {
	return clock.New(), nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideSessionService provides the session lifecycle engine. Constructing
// it runs crash recovery against the store.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clk := do.MustInvoke[clock.Clock](i)

	return service.NewSessionService(context.Background(), storeHandle.Store, clk, log.Logger, cfg.Session.GraceInterval)
}

// ProvideStatsService provides the stats aggregation engine.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clk := do.MustInvoke[clock.Clock](i)

	return service.NewStatsService(storeHandle.Store, clk, log.Logger), nil
}

// ProvideBookService provides the book library service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clk := do.MustInvoke[clock.Clock](i)
	v := do.MustInvoke[*validation.Validator](i)

	return service.NewBookService(storeHandle.Store, clk, v, log.Logger), nil
}
