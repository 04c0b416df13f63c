// Package main runs a small gin service protected by gatekeep.
//
// It loads configuration from gatekeep.yaml (optional), .env and GATEKEEP_* variables.
// When no Redis address is configured an in-process miniredis is used.
//
// Endpoints:
//
//	POST /login            JSON {"username":"...", "password":"...", "auto_login":false}
//	POST /logout           revokes the presented token, always 200
//	GET  /api/me           any authenticated caller
//	GET  /api/admin/stats  admin only
//	PUT  /api/notes/:id    note owner or admin
//	GET  /metrics          Prometheus text format
//
// Run:
//
//	go run ./cmd/gatekeep-demo -addr :8080
//
// Then:
//
//	curl -s -X POST localhost:8080/login \
//	  -H 'Content-Type: application/json' \
//	  -d '{"username":"alice","password":"correct-horse"}'
//
//	curl -i localhost:8080/api/me -H "Authorization: Token <TOKEN>"
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/ginauth"
	"github.com/MrEthical07/gatekeep/metrics/export/internaldefs"
	"github.com/MrEthical07/gatekeep/metrics/export/prometheus"
	"github.com/MrEthical07/gatekeep/middleware"
	"github.com/MrEthical07/gatekeep/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "listen address")
		configPath = flag.String("config", "gatekeep.yaml", "config file; missing file means defaults")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(*addr, *configPath, logger); err != nil {
		logger.Error("demo stopped", "error", err)
		os.Exit(1)
	}
}

func run(addr, configPath string, logger *slog.Logger) error {
	cfg, err := gatekeep.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// ---------- infrastructure ----------
	rdb, cleanup, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := gatekeep.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	// ---------- accounts ----------
	directory, err := seedDirectory()
	if err != nil {
		return err
	}

	// ---------- routes ----------
	router := newRouter(engine, directory, newNoteStore(), logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "mode", string(engine.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRedis(cfg gatekeep.RedisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Addr},
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		logger.Info("using redis", "addr", cfg.Addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Info("using miniredis", "addr", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedDirectory() (*password.Directory, error) {
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, err
	}
	directory, err := password.NewDirectory(hasher)
	if err != nil {
		return nil, err
	}
	if err := directory.Add("alice", "user-alice", string(gatekeep.RoleUser), "correct-horse"); err != nil {
		return nil, err
	}
	if err := directory.Add("root", "user-root", string(gatekeep.RoleAdmin), "battery-staple"); err != nil {
		return nil, err
	}
	return directory, nil
}

func newRouter(engine *gatekeep.Engine, directory *password.Directory, notes *noteStore, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	opts := middleware.OptionsFromConfig(engine.Config(), logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(prometheus.NewPrometheusExporter(engine).Handler()))

	limited := r.Group("/", ginauth.RateLimit(engine.Limiter(), engine, opts))
	limited.POST("/login", loginHandler(engine, directory))
	limited.POST("/logout", ginauth.Logout(engine, opts))

	api := limited.Group("/api", ginauth.Guard(engine, opts))
	api.GET("/me", meHandler)
	api.GET("/admin/stats", ginauth.RequireAdmin(), statsHandler(engine))
	api.PUT("/notes/:id", ginauth.RequireOwner(notes.ownerOf, logger), notes.updateHandler)

	return r
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

type loginBody struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	AutoLogin bool   `json:"auto_login"`
}

func loginHandler(engine *gatekeep.Engine, directory *password.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body loginBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, middleware.ErrorBody{Code: "bad_request", Message: "username and password are required"})
			return
		}

		account, err := directory.Authenticate(body.Username, body.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, middleware.ErrorBody{Code: "invalid_credentials", Message: "invalid credentials"})
			return
		}

		role, err := gatekeep.ParseRole(account.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, middleware.ErrorBody{Code: middleware.CodeInternal, Message: "internal error"})
			return
		}

		issued, err := engine.Login(c.Request.Context(), gatekeep.LoginRequest{
			SubjectID: account.SubjectID,
			Role:      role,
			AutoLogin: body.AutoLogin,
		})
		if err != nil {
			middleware.WriteError(c.Writer, err, engine.Config().HTTP.StorageFailureStatus)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      issued.Token,
			"expires_in": int64(issued.ExpiresIn / time.Second),
			"user":       gin.H{"id": issued.Identity.SubjectID, "role": issued.Identity.Role},
		})
	}
}

func meHandler(c *gin.Context) {
	id, ok := ginauth.IdentityFromGin(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         id.SubjectID,
		"role":       id.Role,
		"auto_login": id.AutoLogin,
		"issued_at":  id.IssuedAt.UTC(),
	})
}

func statsHandler(engine *gatekeep.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := engine.MetricsSnapshot()
		counters := make(map[string]uint64, len(internaldefs.CounterDefs))
		for _, def := range internaldefs.CounterDefs {
			counters[def.Name] = snap.Counters[def.ID]
		}
		c.JSON(http.StatusOK, gin.H{
			"counters":         counters,
			"renewals_dropped": engine.RenewalsDropped(),
		})
	}
}

// ---------------------------------------------------------------------------
// Notes: in-memory resources with an owner
// ---------------------------------------------------------------------------

type note struct {
	Owner string `json:"owner"`
	Body  string `json:"body"`
}

type noteStore struct {
	mu    sync.RWMutex
	notes map[string]note
}

func newNoteStore() *noteStore {
	return &noteStore{notes: map[string]note{
		"n1": {Owner: "user-alice", Body: "first note"},
		"n2": {Owner: "user-root", Body: "admin note"},
	}}
}

func (s *noteStore) ownerOf(c *gin.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[c.Param("id")]
	if !ok {
		return "", middleware.ErrOwnerNotFound
	}
	return n.Owner, nil
}

func (s *noteStore) updateHandler(c *gin.Context) {
	var body struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, middleware.ErrorBody{Code: "bad_request", Message: "body is required"})
		return
	}

	id := c.Param("id")
	s.mu.Lock()
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, middleware.ErrorBody{Code: middleware.CodeNotFound, Message: "note not found"})
		return
	}
	n.Body = body.Body
	s.notes[id] = n
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": id, "note": n})
}
