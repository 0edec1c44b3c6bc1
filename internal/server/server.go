package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/reelrate/reelrate/internal/config"
)

// postgresHealthChecker is the subset of the connection pool used by health checks.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	db          postgresHealthChecker
	redisClient *goredis.Client // nil when the deployment runs without Redis
	startTime   time.Time
}

// NewServer creates the observability HTTP server. redisClient may be nil,
// in which case readiness skips the Redis check.
func NewServer(cfg *config.Config, db postgresHealthChecker, redisClient *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
