package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/delgo-app/delgo-backend/api/controllers"
	"github.com/delgo-app/delgo-backend/api/middleware"
	"github.com/delgo-app/delgo-backend/internal/agents"
	checkoutsvc "github.com/delgo-app/delgo-backend/internal/checkout"
	"github.com/delgo-app/delgo-backend/internal/dispatch"
	"github.com/delgo-app/delgo-backend/internal/earnings"
	"github.com/delgo-app/delgo-backend/internal/notifications"
	"github.com/delgo-app/delgo-backend/internal/shipments"
	pkgAuth "github.com/delgo-app/delgo-backend/pkg/auth"
	"github.com/delgo-app/delgo-backend/pkg/config"
	"github.com/delgo-app/delgo-backend/pkg/logger"
)

// Dependencies carries every service the HTTP surface exposes.
type Dependencies struct {
	Checkout      checkoutsvc.Service
	Shipments     shipments.Service
	Dispatch      dispatch.Service
	Agents        agents.Service
	Earnings      earnings.Service
	Notifications notifications.Service

	DB     controllers.Pinger
	Redis  controllers.Pinger
	Broker controllers.Pinger
}

// NewRouter wires the public HTTP surface. Handlers stay thin: auth and the
// role policy run as middleware, everything else is delegated to services.
func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis, deps.Broker))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.RequireOperation(pkgAuth.OpCheckout, logg)).
			Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/shipments", func(r chi.Router) {
			r.With(middleware.RequireOperation(pkgAuth.OpShipmentAccept, logg)).
				Get("/queue", controllers.ShipmentQueue(deps.Shipments, logg))

			r.Route("/{shipmentId}", func(r chi.Router) {
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentAccept, logg)).
					Post("/accept", controllers.AcceptShipment(deps.Dispatch, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentReject, logg)).
					Post("/reject", controllers.RejectShipment(deps.Shipments, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentPickup, logg)).
					Post("/pickup", controllers.PickupShipment(deps.Shipments, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentDepart, logg)).
					Post("/depart", controllers.DepartShipment(deps.Shipments, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentComplete, logg)).
					Post("/complete", controllers.CompleteShipment(deps.Shipments, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentFail, logg)).
					Post("/fail", controllers.FailShipment(deps.Shipments, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentLocation, logg)).
					Post("/location", controllers.ReportShipmentLocation(deps.Shipments, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentAssign, logg)).
					Post("/auto-assign", controllers.AutoAssignShipment(deps.Dispatch, logg))
				r.With(middleware.RequireOperation(pkgAuth.OpShipmentRead, logg)).
					Get("/track", controllers.TrackShipment(deps.Shipments, logg))
			})
		})

		r.Route("/agents", func(r chi.Router) {
			r.With(middleware.RequireOperation(pkgAuth.OpAgentAvailability, logg)).
				Post("/availability", controllers.SetAgentAvailability(deps.Agents, logg))
			r.With(middleware.RequireOperation(pkgAuth.OpAgentEarnings, logg)).
				Get("/earnings", controllers.AgentEarnings(deps.Earnings, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(middleware.RequireOperation(pkgAuth.OpNotificationRead, logg))
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}
