package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketpulse/marketpulse-backend/api/controllers"
	"github.com/marketpulse/marketpulse-backend/api/middleware"
	catalogsvc "github.com/marketpulse/marketpulse-backend/internal/catalog"
	historysvc "github.com/marketpulse/marketpulse-backend/internal/history"
	inventorysvc "github.com/marketpulse/marketpulse-backend/internal/inventory"
	supplysvc "github.com/marketpulse/marketpulse-backend/internal/supply"
	"github.com/marketpulse/marketpulse-backend/pkg/config"
	"github.com/marketpulse/marketpulse-backend/pkg/db"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
	"github.com/marketpulse/marketpulse-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	inventoryService inventorysvc.Service,
	historyService historysvc.Service,
	supplyService supplysvc.Service,
	catalogService catalogsvc.Service,
) http.Handler {
	r := chi.NewRouter()

	var redisP redis.Pinger
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		redisP = redisClient
		idemStore = redisClient
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", controllers.InventoryLowStock(inventoryService, logg))
			r.Get("/{productId}", controllers.InventoryDetail(inventoryService, logg))
			r.Post("/{productId}/adjust", controllers.InventoryAdjust(inventoryService, logg))
			r.Get("/{productId}/history", controllers.InventoryHistory(historyService, logg))
			r.Get("/{productId}/supplies", controllers.InventorySupplies(supplyService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/inventory", func(r chi.Router) {
			r.Get("/", controllers.AdminInventoryList(inventoryService, logg))
			r.Get("/vendors/{vendorId}", controllers.AdminInventoryByVendor(inventoryService, logg))
			r.Get("/low-stock", controllers.AdminInventoryLowStock(inventoryService, logg))
			r.Get("/history", controllers.AdminInventoryHistory(historyService, logg))
			r.Post("/{productId}/adjust", controllers.InventoryAdjust(inventoryService, logg))
		})

		r.Delete("/v1/products/{productId}", controllers.AdminProductPurge(catalogService, logg))
	})

	return r
}
