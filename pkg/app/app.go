// Package app assembles the client from configuration: one explicit context
// holding the bus, the session, the request client and the API.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/univ-admin-client/internal/config"
	"github.com/Sternrassler/univ-admin-client/pkg/api"
	"github.com/Sternrassler/univ-admin-client/pkg/cache"
	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/events"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/Sternrassler/univ-admin-client/pkg/pagination"
	"github.com/Sternrassler/univ-admin-client/pkg/ratelimit"
	"github.com/Sternrassler/univ-admin-client/pkg/screens"
	"github.com/Sternrassler/univ-admin-client/pkg/session"
)

// App is the assembled client.
type App struct {
	Config  config.Config
	Bus     *events.Bus
	Redis   *redis.Client
	Cache   *cache.Manager
	Limiter *ratelimit.Limiter
	Client  *client.Client
	API     *api.API
	Session *session.Manager

	logger zerolog.Logger
}

// New builds the App. Redis is connected only when the cache or the redis
// session store needs it, and must answer a ping.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Bus:    events.NewBus(),
		logger: log.With().Str("component", "app").Logger(),
	}

	if cfg.NeedsRedis() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Redis.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}
	if cfg.Cache.Enabled {
		a.Cache = cache.NewManager(a.Redis, cfg.Cache.TTL)
	}
	if cfg.RateLimit.Enabled {
		a.Limiter = ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RPS,
			Burst:             cfg.RateLimit.Burst,
		}, log.With().Str("component", "ratelimit").Logger())
	}

	var store session.Store
	switch cfg.Session.Store {
	case config.StoreRedis:
		store = session.NewRedisStore(a.Redis, cfg.Session.RedisPrefix, cfg.Session.TTL)
	case config.StoreFile:
		store = session.NewFileStore(cfg.Session.Path)
	default:
		store = session.NewMemoryStore()
	}
	a.Session = session.NewManager(store, a.Bus)

	clientCfg := client.DefaultConfig(cfg.Backend.BaseURL, cfg.Backend.UserAgent)
	clientCfg.Timeout = cfg.Backend.Timeout
	clientCfg.Retry.MaxAttempts = cfg.Retry.MaxAttempts
	clientCfg.Retry.InitialBackoff = cfg.Retry.InitialBackoff
	clientCfg.Retry.MaxBackoff = cfg.Retry.MaxBackoff
	clientCfg.Limiter = a.Limiter
	clientCfg.Cache = a.Cache
	if cfg.Cache.TTL > 0 {
		clientCfg.CacheTTL = cfg.Cache.TTL
	}
	clientCfg.TokenSource = a.Session
	clientCfg.ForbiddenHandler = a.Session

	c, err := client.New(clientCfg)
	if err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("create client: %w", err)
	}
	a.Client = c
	a.API = api.New(c, a.Bus)
	a.Session.Attach(a.API)

	a.logger.Debug().
		Str("backend", cfg.Backend.BaseURL).
		Str("session_store", cfg.Session.Store).
		Bool("cache", a.Cache != nil).
		Bool("rate_limit", a.Limiter != nil).
		Msg("Client assembled")
	return a, nil
}

func (a *App) closeRedis() error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Close()
}

// Close releases the client and the Redis connection.
func (a *App) Close() error {
	var errs []error
	if a.Client != nil {
		errs = append(errs, a.Client.Close())
	}
	errs = append(errs, a.closeRedis())
	return errors.Join(errs...)
}

// PagerOptions are the options every screen is built with.
func (a *App) PagerOptions() []pagination.Option {
	return []pagination.Option{
		pagination.WithFetchTimeout(a.Config.Pager.FetchTimeout),
		pagination.WithErrorBuffer(a.Config.Pager.ErrorBuffer),
	}
}

// Faculties opens the faculties screen.
func (a *App) Faculties() *screens.Screen[models.Faculty] {
	return screens.FacultiesList(a.API, a.Bus, a.PagerOptions()...)
}

// Cathedras opens the cathedras screen of facultyID.
func (a *App) Cathedras(facultyID int) *screens.Screen[models.Cathedra] {
	return screens.CathedrasList(a.API, a.Bus, facultyID, a.PagerOptions()...)
}

// Groups opens the groups screen of cathedraID.
func (a *App) Groups(cathedraID int) *screens.Screen[models.Group] {
	return screens.GroupsList(a.API, a.Bus, cathedraID, a.PagerOptions()...)
}

// Lessons opens the lessons screen.
func (a *App) Lessons() *screens.Screen[models.Lesson] {
	return screens.LessonsList(a.API, a.Bus, a.PagerOptions()...)
}

// PaymentHistory opens the payment history screen.
func (a *App) PaymentHistory() *screens.Screen[models.Payment] {
	return screens.PaymentHistory(a.API, a.Bus, a.PagerOptions()...)
}
