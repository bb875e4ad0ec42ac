package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/albumforge/backoffice/internal/auth"
	"github.com/albumforge/backoffice/internal/config"
	"github.com/albumforge/backoffice/internal/database"
	"github.com/albumforge/backoffice/internal/handler"
	"github.com/albumforge/backoffice/internal/middleware"
	"github.com/albumforge/backoffice/internal/queue"
	"github.com/albumforge/backoffice/internal/rbac"
	"github.com/albumforge/backoffice/internal/repository"
	"github.com/albumforge/backoffice/internal/router"
	audit "github.com/albumforge/backoffice/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables the rate limiter, the
	// response cache and the session marker store.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting, caching and session markers disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	roles := repository.NewRoleRepo(db)
	products := repository.NewProductRepo(db)

	policy := auth.NewCookiePolicy(cfg)
	provider := auth.NewSQLProvider(cfg, users, tokens)
	store := auth.NewSessionStore(rdb)
	manager := auth.NewManager(provider, policy, store, audit.NewPublisher())
	defer manager.Close(context.Background())

	resolver := rbac.NewResolver(roles)

	gcfg := config.LoadGuardConfig()
	guard := middleware.NewRouteGuard(cfg.JWTSecret, cfg.APIKey, policy,
		middleware.NewSessionCache(gcfg.SessionCacheTTL, gcfg.SessionCacheMax))

	e := echo.New()
	e.Pre(guard.Middleware())

	authHandler := handler.NewAuthHandler(manager, provider, policy, resolver)
	adminHandler := handler.NewAdminHandler(resolver)
	catalogHandler := handler.NewCatalogHandler(products)

	router.RegisterRoutes(e, adminHandler)
	router.RegisterAuth(e, authHandler)
	router.RegisterAdmin(e, adminHandler)
	router.RegisterAPI(e, catalogHandler, adminHandler, resolver, rdb)

	// Audit trail consumer runs for the life of the process and reconnects
	// on broker failures.
	go queue.StartAuditConsumer()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
