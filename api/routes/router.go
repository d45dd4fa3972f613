package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dariovega/shopstream-backend/api/controllers"
	webhookcontrollers "github.com/dariovega/shopstream-backend/api/controllers/webhooks"
	"github.com/dariovega/shopstream-backend/api/middleware"
	checkoutsvc "github.com/dariovega/shopstream-backend/internal/checkout"
	"github.com/dariovega/shopstream-backend/internal/orders"
	paymentwebhook "github.com/dariovega/shopstream-backend/internal/webhooks/payment"
	"github.com/dariovega/shopstream-backend/pkg/config"
	"github.com/dariovega/shopstream-backend/pkg/db"
	"github.com/dariovega/shopstream-backend/pkg/logger"
	"github.com/dariovega/shopstream-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	ordersRepo orders.Repository,
	webhookService *paymentwebhook.Service,
	webhookGuard *paymentwebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(webhookService, cfg.Webhook, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Checkout, preview and order lookup serve guests too; cancel
		// authorizes guests by shipping email inside the service.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Post("/checkout", controllers.Checkout(checkoutService, logg))
			r.Post("/checkout/preview", controllers.CheckoutPreview(checkoutService, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(ordersRepo, logg))
			r.Post("/orders/{orderId}/cancel", controllers.CancelOrder(checkoutService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/orders", controllers.ListOrders(ordersRepo, logg))
			r.Post("/orders/claim", controllers.ClaimOrders(ordersRepo, logg))
		})
	})

	return r
}
