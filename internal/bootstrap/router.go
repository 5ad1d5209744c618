package bootstrap

import (
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Zenkai92/Modelify/config"
	httpapi "github.com/Zenkai92/Modelify/internal/api/http"
	"github.com/Zenkai92/Modelify/internal/api/http/middleware"
	"github.com/Zenkai92/Modelify/internal/auth"
	"github.com/Zenkai92/Modelify/internal/files"
	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/payment"
	projecthttp "github.com/Zenkai92/Modelify/internal/projects/http"
	"github.com/Zenkai92/Modelify/internal/projects/repository"
	"github.com/Zenkai92/Modelify/internal/projects/service"
	"github.com/Zenkai92/Modelify/internal/submission"
	"github.com/Zenkai92/Modelify/internal/users"
)

type RouterDeps struct {
	Config     *config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	AuthClient *firebaseauth.Client
}

// BuildRouter wires every handler behind one gin engine. It also returns the
// lifecycle service so the caller can hand it to the reconcile scheduler.
func BuildRouter(dep RouterDeps) (*gin.Engine, *service.Lifecycle) {
	cfg := dep.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler("modelify-api", cfg.App.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	userRepo := users.NewRepo(dep.DB)
	roleCache := auth.NewRoleCache(dep.Redis, cfg.Auth.RoleCacheTTL)
	resolver := auth.NewResolver(userRepo, roleCache, cfg.Auth.RoleLookupTimeout)

	projectRepo := repository.NewRepo(dep.DB)
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.SuccessURL, cfg.Payment.CancelURL)
	confirms := service.NewConfirmStore(dep.Redis, cfg.Payment.ConfirmTTL)
	lifecycle := service.NewLifecycle(projectRepo, gateway, confirms)

	uploader := files.NewClient(cfg.Storage.BaseURL, cfg.Storage.APIKey, cfg.Storage.Bucket)
	drafts := submission.NewDraftStore(dep.Redis)
	orchestrator := submission.NewOrchestrator(drafts, lifecycle, uploader)

	projectHandler := projecthttp.NewHandler(lifecycle, cfg.Payment.WebhookSecret)

	// Provider callbacks carry no user token, only the shared secret or a
	// session id that is verified against the provider itself.
	payments := r.Group("/api/v1")
	projectHandler.RegisterPaymentRoutes(payments)

	api := r.Group("/api/v1")
	api.Use(auth.WithPrincipal(dep.AuthClient, resolver))

	principal := func(c *gin.Context) (string, string, users.Role, bool) {
		p, ok := auth.CurrentPrincipal(c)
		return p.UID, p.Email, p.Role, ok
	}
	warmRole := func(c *gin.Context, uid string, role users.Role) {
		if err := roleCache.Put(c.Request.Context(), uid, role); err != nil {
			logging.FromContext(c.Request.Context()).Warnf("signup", "role cache warm failed for uid=%s: %v", uid, err)
		}
	}
	userHandler := users.NewHandler(userRepo, principal, warmRole)

	signup := api.Group("")
	signup.Use(middleware.RateLimitPerIP(cfg.Auth.SignupRatePerMin))
	signup.POST("/users", userHandler.Signup)

	userGroup := api.Group("")
	userHandler.RegisterMemberRoutes(userGroup, auth.RequireAdmin())

	projectHandler.RegisterRoutes(api, auth.RequireAdmin())
	submission.NewHandler(orchestrator).RegisterRoutes(api)

	return r, lifecycle
}
