package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unicampus/campus-backend/api/controllers"
	ordercontrollers "github.com/unicampus/campus-backend/api/controllers/orders"
	"github.com/unicampus/campus-backend/api/middleware"
	"github.com/unicampus/campus-backend/internal/auth"
	"github.com/unicampus/campus-backend/internal/bridge"
	"github.com/unicampus/campus-backend/internal/captcha"
	"github.com/unicampus/campus-backend/internal/catalog"
	checkoutsvc "github.com/unicampus/campus-backend/internal/checkout"
	"github.com/unicampus/campus-backend/internal/clubs"
	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/internal/notifications"
	"github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/internal/points"
	"github.com/unicampus/campus-backend/internal/users"
	"github.com/unicampus/campus-backend/internal/vouchers"
	"github.com/unicampus/campus-backend/pkg/auth/session"
	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/enums"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/metrics"
	"github.com/unicampus/campus-backend/pkg/telemetry"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (*session.Rotated, error)
	Revoke(context.Context, string) error
}

// redisStore is satisfied by *redis.Client and backs the rate limits, the
// idempotency records and the readiness ping.
type redisStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type changeSource interface {
	Changes(ctx context.Context) (<-chan feed.Change, error)
}

// Services groups the domain services the HTTP surface exposes. A nil
// service makes its routes answer with INTERNAL_ERROR.
type Services struct {
	Auth          auth.Service
	Register      auth.RegisterService
	Bridge        bridge.Service
	Captcha       captcha.Service
	Users         users.Service
	Catalog       catalog.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Clubs         clubs.Service
	Points        points.Service
	Vouchers      vouchers.Service
	Notifications notifications.Service
	Feed          changeSource
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store redisStore,
	sessionManager sessionManager,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if httpMetrics != nil {
		r.Use(middleware.Metrics(httpMetrics))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	bridgePolicy := middleware.NewAuthRateLimitPolicy(
		"bridge",
		cfg.AuthRateLimit.BridgeWindow,
		cfg.AuthRateLimit.BridgeIPLimit,
		0,
	)

	// A nil store disables the Redis-backed middleware instead of panicking on first use.
	var redisPinger interface{ Ping(context.Context) error }
	rateLimit := func(middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler { return passthrough }
	idempotency := passthrough
	if store != nil {
		redisPinger = store
		rateLimit = func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
			return middleware.AuthRateLimit(policy, store, logg)
		}
		idempotency = middleware.Idempotency(store, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisPinger, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.OpenCORS())
		r.With(rateLimit(bridgePolicy)).
			Post("/session-bridge", controllers.SessionBridge(svc.Bridge, logg))
		r.Post("/verify-captcha", controllers.VerifyCaptcha(svc.Captcha, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

		r.Route("/auth", func(r chi.Router) {
			r.Use(idempotency)
			r.With(rateLimit(loginPolicy)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
			r.With(rateLimit(registerPolicy)).Post("/register", controllers.AuthRegister(svc.Register, svc.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
			r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
			r.Use(idempotency)

			r.Get("/feed", controllers.ChangeFeed(svc.Feed, logg))

			r.Route("/me", func(r chi.Router) {
				r.Get("/", controllers.GetMe(svc.Users, logg))
				r.Put("/", controllers.UpdateMe(svc.Users, logg))
				r.Put("/checkout-pin", controllers.SetCheckoutPIN(svc.Users, logg))
				r.Get("/clubs", controllers.MyClubs(svc.Clubs, logg))
				r.Get("/points", controllers.MyPointsBalance(svc.Points, logg))
				r.Get("/points/history", controllers.MyPointsHistory(svc.Points, logg))
				r.Get("/vouchers", controllers.MyRedemptions(svc.Vouchers, logg))
			})

			r.Get("/vendors", controllers.ListVendors(svc.Catalog, logg))
			r.Get("/vendors/{vendorId}", controllers.GetVendor(svc.Catalog, logg))
			r.Get("/vendors/{vendorId}/products", controllers.ListVendorProducts(svc.Catalog, logg))
			r.Get("/categories", controllers.ListCategories(svc.Catalog, logg))
			r.Get("/products", controllers.ListProducts(svc.Catalog, logg))

			r.Post("/cart/quote", controllers.QuoteCart(svc.Checkout, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleStudent))
				r.Post("/checkout", controllers.Checkout(svc.Checkout, logg))
				r.Post("/checkout/verify-pin", controllers.VerifyCheckoutPIN(svc.Checkout, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.StudentList(svc.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.StudentDetail(svc.Orders, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.StudentCancel(svc.Orders, logg))
			})

			r.Route("/clubs", func(r chi.Router) {
				r.Get("/", controllers.ListClubs(svc.Clubs, logg))
				r.Get("/{clubId}", controllers.GetClub(svc.Clubs, logg))
				r.Post("/{clubId}/join", controllers.JoinClub(svc.Clubs, logg))
				r.Post("/{clubId}/leave", controllers.LeaveClub(svc.Clubs, logg))
				r.Get("/{clubId}/members", controllers.ListClubMembers(svc.Clubs, logg))
				r.Put("/{clubId}/members/{userId}/role", controllers.SetClubMemberRole(svc.Clubs, logg))
			})

			r.Route("/vouchers", func(r chi.Router) {
				r.Get("/", controllers.ListVouchers(svc.Vouchers, logg))
				r.Post("/{voucherId}/redeem", controllers.RedeemVoucher(svc.Vouchers, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
			})

			r.Route("/vendor", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleVendorStaff))
				r.Use(middleware.VendorScope(logg))
				r.Post("/products", controllers.VendorCreateProduct(svc.Catalog, logg))
				r.Patch("/products/{productId}", controllers.VendorUpdateProduct(svc.Catalog, logg))
				r.Put("/status", controllers.VendorSetStatus(svc.Catalog, logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", ordercontrollers.VendorList(svc.Orders, logg))
					r.Get("/{orderId}", ordercontrollers.VendorDetail(svc.Orders, logg))
					r.Post("/{orderId}/accept", ordercontrollers.VendorAccept(svc.Orders, logg))
					r.Post("/{orderId}/ready", ordercontrollers.VendorReady(svc.Orders, logg))
					r.Post("/{orderId}/complete", ordercontrollers.VendorComplete(svc.Orders, logg))
					r.Post("/{orderId}/cancel", ordercontrollers.VendorCancel(svc.Orders, logg))
				})
			})

			// Club admins are authorised per club inside the points service.
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleClubAdmin))
				r.Post("/engagements", controllers.AdminRecordEngagement(svc.Points, logg))
			})
		})
	})

	return telemetry.Handler(r, "campus-api")
}

func passthrough(next http.Handler) http.Handler { return next }
