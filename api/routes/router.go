package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/platecost-backend/api/controllers"
	"github.com/angelmondragon/platecost-backend/api/middleware"
	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/internal/costimport"
	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/internal/menucost"
	"github.com/angelmondragon/platecost-backend/internal/uom"
	"github.com/angelmondragon/platecost-backend/pkg/config"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
	"github.com/angelmondragon/platecost-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	uomService uom.Service,
	dishService dishcost.Service,
	menuService menucost.Service,
	importService costimport.Service,
	auditService audit.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checks := []controllers.ReadinessCheck{{Name: "database", Pinger: dbP}}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	maxUpload := cfg.Import.MaxUploadBytes()

	r.Route("/api/v1/orgs/{orgId}", func(r chi.Router) {
		r.Use(middleware.OrgScope(logg))

		r.Get("/ingredients/{ingredientId}/convert", controllers.ConvertQuantity(uomService, logg))
		r.Get("/dishes/{dishId}/cost", controllers.DishCost(dishService, logg))
		r.Get("/audit", controllers.AuditTrail(auditService, logg))

		r.Route("/menus/{menuId}", func(r chi.Router) {
			r.Get("/cost", controllers.MenuCost(menuService, logg))
			r.Get("/lock-check", controllers.MenuLockCheck(menuService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireActor(logg))
				r.Use(middleware.Idempotency(idempotencyStore, logg))
				r.Post("/lock", controllers.MenuLock(menuService, logg))
				r.Post("/unlock", controllers.MenuUnlock(menuService, logg))
				r.Patch("/groups/{groupId}", controllers.MenuGroupPatch(menuService, logg))
				r.Patch("/items/{itemId}", controllers.MenuItemPatch(menuService, logg))
			})
		})

		r.Route("/cost-imports", func(r chi.Router) {
			r.Post("/preview", controllers.CostImportPreview(importService, maxUpload, logg))
			r.Get("/{importId}", controllers.CostImportGet(importService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireActor(logg))
				r.Use(middleware.Idempotency(idempotencyStore, logg))
				r.Post("/", controllers.CostImportUpload(importService, maxUpload, logg))
				r.Post("/{importId}/confirm", controllers.CostImportConfirm(importService, logg))
			})
		})
	})

	return r
}
