package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdgallegos/beaconshop-backend/api/controllers"
	"github.com/jdgallegos/beaconshop-backend/api/middleware"
	"github.com/jdgallegos/beaconshop-backend/internal/automation"
	"github.com/jdgallegos/beaconshop-backend/internal/dispatch"
	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	products "github.com/jdgallegos/beaconshop-backend/internal/products"
	"github.com/jdgallegos/beaconshop-backend/internal/settings"
	"github.com/jdgallegos/beaconshop-backend/pkg/config"
	"github.com/jdgallegos/beaconshop-backend/pkg/db"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
	"github.com/jdgallegos/beaconshop-backend/pkg/redis"
)

// Deps carries everything the router wires into controllers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Settings     *settings.Service
	EventLog     *eventlog.Repository
	Builder      *events.Builder
	Dispatcher   *dispatch.Service
	Scheduler    *automation.Scheduler
	Products     products.Service
	PromGatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger(deps.Redis)))
	})

	if deps.PromGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.PromGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/beacon", controllers.Beacon(deps.Builder, deps.Dispatcher, logg))
		r.Get("/catalog", controllers.ListCatalog(deps.Products, logg))
		r.Get("/catalog/{slug}", controllers.GetCatalogItem(deps.Products, logg))
	})

	r.Route("/admin/api", func(r chi.Router) {
		r.Get("/ping", controllers.AdminPing())

		r.Route("/automation", func(r chi.Router) {
			r.Post("/start", controllers.AutomationStart(deps.Scheduler, deps.Settings, logg))
			r.Post("/stop", controllers.AutomationStop(deps.Scheduler, logg))
			r.Get("/status", controllers.AutomationStatus(deps.Scheduler, logg))
		})

		r.Get("/settings", controllers.ListSettings(deps.Settings, logg))
		r.Post("/settings", controllers.ApplySettings(deps.Settings, logg))

		r.Get("/chaos", controllers.GetChaos(deps.Settings, logg))
		r.Post("/chaos", controllers.SetChaos(deps.Settings, logg))

		r.Get("/counters", controllers.GetCounters(deps.EventLog, deps.Scheduler, logg))
		r.Get("/events", controllers.ListEvents(deps.EventLog, logg))

		r.Post("/manual_send", controllers.ManualSend(deps.Builder, deps.Dispatcher, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", controllers.ListCatalog(deps.Products, logg))
			r.Put("/", controllers.UpsertCatalogItem(deps.Products, logg))
			r.Get("/{slug}", controllers.GetCatalogItem(deps.Products, logg))
			r.Delete("/{slug}", controllers.DeleteCatalogItem(deps.Products, logg))
		})
	})

	return r
}

// redisPinger avoids handing the controllers a typed-nil interface when
// Redis is not configured.
func redisPinger(client *redis.Client) interface{ Ping(ctx context.Context) error } {
	if client == nil {
		return nil
	}
	return client
}
