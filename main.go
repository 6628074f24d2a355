package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"busease/internal/assistant"
	"busease/internal/cache"
	intconfig "busease/internal/config"
	"busease/internal/db"
	"busease/internal/events"
	router "busease/internal/http"
	"busease/internal/http/handlers"
	"busease/internal/repositories"
	"busease/internal/services"
	"busease/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	env, err := intconfig.LoadEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	utils.SetupLogger(env.LogLevel, env.LogFormat)
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}
	loc := env.Location()

	store, err := openStore(env)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer intconfig.CloseDB()

	var kv cache.Cache = cache.NewMemory(env.Cache.TTL)
	if env.Valkey.Addr != "" {
		v, err := cache.NewValkey(env.Valkey.Addr)
		if err != nil {
			slog.Error("valkey", "error", err)
			os.Exit(1)
		}
		defer v.Close()
		kv = v
	}

	var pub events.Publisher = events.NoopPublisher{}
	if env.NATS.URL != "" {
		p, err := events.NewNATSPublisher(env.NATS.URL, env.NATS.PublishTimeout)
		if err != nil {
			slog.Error("nats", "error", err)
			os.Exit(1)
		}
		pub = p
	}
	defer pub.Close()

	var mailer services.Mailer = services.LogMailer{}
	if env.SMTP.Host != "" {
		mailer = services.NewSMTPMailer(env.SMTP.Host, env.SMTP.Port, env.SMTP.User, env.SMTP.Password, env.SMTP.From)
	}

	var routes services.RouteEstimator
	if env.Maps.APIKey != "" {
		mr, err := services.NewMapsRouter(env.Maps.APIKey, env.Maps.Timeout)
		if err != nil {
			slog.Error("maps client", "error", err)
			os.Exit(1)
		}
		routes = mr
	}

	var checkout services.CheckoutProvider
	if env.Stripe.SecretKey != "" {
		checkout = services.StripeCheckout{
			SecretKey:  env.Stripe.SecretKey,
			SuccessURL: env.Stripe.SuccessURL,
			CancelURL:  env.Stripe.CancelURL,
		}
	}

	gemini := assistant.NewGeminiClient(env.Gemini.APIKey, env.Gemini.Model, env.Gemini.BaseURL)
	if env.Gemini.Timeout > 0 {
		gemini.HTTP.Timeout = env.Gemini.Timeout
	}

	places, err := assistant.LoadGazetteer(env.Assistant.GazetteerPath)
	if err != nil {
		slog.Error("load gazetteer", "error", err)
		os.Exit(1)
	}

	hd := handlers.New(handlers.Deps{
		Store:     store,
		JWTSecret: []byte(env.JWT.Secret),
		JWTTTL:    env.JWT.TTL,
		Mailer:    mailer,
		Events:    pub,
		Cache:     kv,
		CacheTTL:  env.Cache.TTL,
		Router:    routes,
		Checkout:  checkout,
		Currency:  env.Stripe.Currency,
		Generator: gemini,
		Dates:     assistant.NewWhenDateParser(loc),
		Gazetteer: places,
		Loc:       loc,
	})
	r := router.NewRouter(env, hd)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", env.AppAddr, "driver", env.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return
	}
	slog.Info("server stopped")
}

func openStore(env intconfig.Env) (repositories.Store, error) {
	if env.Database.Driver != "mysql" {
		slog.Warn("using in-memory store; data is lost on restart")
		return repositories.NewMemoryStore(), nil
	}
	conn, err := intconfig.ConnectDB(env.Database)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, conn); err != nil {
		return nil, err
	}
	return repositories.NewMySQLStore(conn, env.Location()), nil
}
