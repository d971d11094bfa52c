// Command apiserver runs the user-records API with its websocket command
// channel.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/base-api/auth"
	"github.com/kbukum/base-api/auth/authctx"
	"github.com/kbukum/base-api/auth/jwt"
	"github.com/kbukum/base-api/auth/password"
	"github.com/kbukum/base-api/component"
	"github.com/kbukum/base-api/config"
	apperrors "github.com/kbukum/base-api/errors"
	"github.com/kbukum/base-api/logger"
	"github.com/kbukum/base-api/mail"
	"github.com/kbukum/base-api/mongodb"
	"github.com/kbukum/base-api/ntp"
	"github.com/kbukum/base-api/observability"
	"github.com/kbukum/base-api/relay"
	"github.com/kbukum/base-api/server"
	"github.com/kbukum/base-api/server/endpoint"
	"github.com/kbukum/base-api/users"
	"github.com/kbukum/base-api/ws"
)

const serviceName = "apiserver"

func main() {
	var cfg Config
	if err := config.Load(serviceName, &cfg); err != nil {
		logger.Fatal("Failed to load configuration", logger.Fields(logger.FieldError, apperrors.Config(err.Error()).Error()))
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", logger.Fields(logger.FieldError, apperrors.Config(err.Error()).Error()))
	}

	logger.Init(cfg.Logging)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, log); err != nil {
		log.Fatal("Startup failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

func run(ctx context.Context, cfg *Config, log *logger.Logger) error {
	codec, err := jwt.NewService(&cfg.Auth.JWT)
	if err != nil {
		return err
	}
	hasher := password.NewHasher(cfg.Auth.Password)

	mailer, err := mail.NewSender(&cfg.SMTP)
	if err != nil {
		return err
	}

	clock, err := ntp.NewClock(&cfg.NTP)
	if err != nil {
		return err
	}

	mongo, err := mongodb.NewComponent(&cfg.Mongo)
	if err != nil {
		return err
	}
	telemetry, err := observability.NewComponent(&cfg.Telemetry, cfg.Name)
	if err != nil {
		return err
	}

	hub := relay.NewComponent()

	srv := server.New(cfg.Server, logger.GetGlobalLogger())
	srv.ApplyMiddleware()

	registry := component.NewRegistry()
	for _, c := range []component.Component{
		telemetry,
		ntp.NewComponent(clock),
		mongo,
		hub,
	} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	// Mongo must be up before the store can ensure its index, and every
	// route must be bound before the listener opens, so the server starts
	// in a second phase.
	if err := registry.StartAll(ctx); err != nil {
		_ = stopAll(registry)
		return err
	}

	store, err := users.NewMongoStore(mongo.Database())
	if err != nil {
		_ = stopAll(registry)
		return err
	}

	directory := users.NewDirectory(store)
	authenticator := auth.NewAuthenticator(codec, directory, logger.GetGlobalLogger())
	gate := authctx.Gate(authenticator)

	dispatcher := ws.NewDispatcher()
	dispatcher.RegisterBasicHandler()
	wsHandler := ws.NewHandler(ctx, cfg.WS, hub.Hub(), dispatcher)

	engine := srv.GinEngine()
	engine.GET("/health", endpoint.Health(cfg.Name, registry.HealthAll))
	// The websocket endpoint is open: only /users sits behind the gate.
	engine.GET("/ws", wsHandler.Handle)
	users.NewHandlers(store, hasher, codec, mailer).RegisterRoutes(engine, gate)

	if err := registry.Register(server.NewComponent(srv)); err != nil {
		_ = stopAll(registry)
		return err
	}
	if err := registry.StartAll(ctx); err != nil {
		_ = stopAll(registry)
		return err
	}

	log.Info("Service started", logger.Fields(
		"version", cfg.Version,
		"addr", srv.Addr(),
		"clock_offset", clock.Offset().String(),
	))

	<-ctx.Done()
	log.Info("Shutting down")
	return stopAll(registry)
}

// stopAll stops every started component with a fresh deadline, independent
// of the signal context that triggered the shutdown.
func stopAll(registry *component.Registry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return registry.StopAll(ctx)
}
