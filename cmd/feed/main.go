package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/socialfeed/feed-services/handlers"
	commenthandler "github.com/socialfeed/feed-services/internal/comment/handler"
	commentservice "github.com/socialfeed/feed-services/internal/comment/service"
	"github.com/socialfeed/feed-services/internal/config"
	"github.com/socialfeed/feed-services/internal/database"
	"github.com/socialfeed/feed-services/internal/identity"
	"github.com/socialfeed/feed-services/internal/oidc"
	posthandler "github.com/socialfeed/feed-services/internal/post/handler"
	postservice "github.com/socialfeed/feed-services/internal/post/service"
	"github.com/socialfeed/feed-services/internal/storage"
	"github.com/socialfeed/feed-services/internal/store"
	"github.com/socialfeed/feed-services/internal/tokens"
	"github.com/socialfeed/feed-services/internal/users"
	"github.com/socialfeed/feed-services/pkg/logger"
	"github.com/socialfeed/feed-services/pkg/metrics"
	"github.com/socialfeed/feed-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v media=%v delete_policy=%s",
		cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Media.Endpoint != "", cfg.Comments.DeletePolicy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.ReadinessCheck{}

	// Redis backs the user cache, token revocation and the shared rate limiter.
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		} else {
			logger.Infof("connected to Redis at %s", addr)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Document store: MongoDB when configured, otherwise process memory.
	var (
		st       store.Store
		userRepo users.UserRepository
	)
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, func(attempt int, err error) {
			logger.Warnf("attempt %d/5: failed to connect to MongoDB: %v", attempt, err)
		})
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db := client.Database(cfg.MongoDB.Database)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			logger.Warnf("failed to ensure indexes: %v", err)
		}
		st = store.NewMongoStore(db)
		userRepo = users.NewMongoUserRepository(db.Collection(store.Users))
		checks["store"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	} else {
		st = store.NewMemoryStore()
		userRepo = users.NewMemoryUserRepository()
		checks["store"] = func(context.Context) error { return nil }
	}

	var userOpts []users.Option
	if rdb != nil {
		userOpts = append(userOpts, users.WithCache(rdb, cfg.Comments.UserCacheTTL))
	}
	userSvc := users.NewService(userRepo, userOpts...)
	revocations := identity.NewRevocationList(rdb)

	verifier := buildVerifier(ctx, cfg)
	if verifier == nil {
		logger.Warn("no token verifier configured; authenticated routes will answer 401")
	}
	auth := middleware.AuthMiddleware(verifier, revocations)

	var media postservice.MediaUploader
	if cfg.Media.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.Media)
		if err != nil {
			logger.Warnf("media storage unavailable, posts with media will be refused: %v", err)
		} else {
			media = ms
		}
	}

	comments := commentservice.New(st, userSvc,
		commentservice.WithDeletePolicy(commentservice.DeletePolicy(cfg.Comments.DeletePolicy)),
		commentservice.WithStoreTimeout(cfg.Comments.StoreTimeout),
	)
	posts := postservice.New(st, media)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	// the limiter sits behind auth so buckets are keyed by subject
	protected := []gin.HandlerFunc{auth}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			protected = append(protected, middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			protected = append(protected, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	handlers.RegisterHealth(r, startTime, checks)
	handlers.RegisterSwagger(r)
	handlers.NewAuthHandler(userSvc, revocations, cfg.JWT.AccessTokenTTL).Register(r, protected...)
	posthandler.RegisterPostRoutes(r, posts, cfg.Media.MaxUploadBytes, protected...)
	commenthandler.RegisterCommentRoutes(r, comments, protected...)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting feed service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// buildVerifier prefers Keycloak, then the shared HS256 secret, then the
// insecure claims parser when explicitly allowed for integration runs.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := oidc.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err == nil {
			logger.Infof("using OIDC verifier for issuer %s", issuer)
			return ver
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		logger.Info("using HS256 shared-secret verifier")
		return tokens.NewVerifier(cfg.JWT.Secret)
	}
	if cfg.JWT.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return oidc.NewInsecureVerifier()
	}
	return nil
}
