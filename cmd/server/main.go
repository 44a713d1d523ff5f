package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"tradegate/internal/broker"
	"tradegate/internal/config"
	"tradegate/internal/crypto"
	"tradegate/internal/database"
	"tradegate/internal/demo"
	"tradegate/internal/engine"
	"tradegate/internal/handlers"
	"tradegate/internal/instruments"
	"tradegate/internal/middleware"
	"tradegate/internal/repository"
)

// App holds the application dependencies.
type App struct {
	config            *config.Config
	db                *database.DB
	router            *chi.Mux
	sessionManager    *broker.SessionManager
	instrumentCache   *instruments.Cache
	orderHandler      *handlers.OrderHandler
	clientHandler     *handlers.ClientHandler
	instrumentHandler *handlers.InstrumentHandler
	portfolioHandler  *handlers.PortfolioHandler
	sessionHandler    *handlers.SessionHandler
}

func main() {
	// Load .env if present; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	vault, err := crypto.NewVault(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	// Repositories
	clientRepo := repository.NewClientRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	runRepo := repository.NewRunRepository(db)

	if cfg.DemoMode {
		seeder := demo.NewSeeder(db, vault)
		if err := seeder.SeedIfEmpty(); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	// Broker stack
	gateway := broker.NewGateway(cfg.BrokerEnv)
	sessionManager := broker.NewSessionManager(vault, gateway)
	eng := engine.NewEngine(clientRepo, orderRepo, runRepo, sessionManager, gateway)
	instrumentCache := instruments.NewCache(clientRepo, sessionManager, gateway)
	log.Printf("Broker gateway configured for %s", cfg.BrokerEnv)

	app := &App{
		config:            cfg,
		db:                db,
		sessionManager:    sessionManager,
		instrumentCache:   instrumentCache,
		orderHandler:      handlers.NewOrderHandler(eng, orderRepo, runRepo),
		clientHandler:     handlers.NewClientHandler(clientRepo, vault),
		instrumentHandler: handlers.NewInstrumentHandler(instrumentCache),
		portfolioHandler:  handlers.NewPortfolioHandler(eng),
		sessionHandler:    handlers.NewSessionHandler(sessionManager, clientRepo),
	}
	app.setupRouter()

	scheduler := app.startScheduler()

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://%s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func (app *App) setupRouter() {
	r := chi.NewRouter()

	// Chi middleware (aliased as chimw to avoid conflict with our middleware package)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Compress(5))

	r.Use(middleware.SecurityHeaders)

	r.Get("/health", app.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(app.config.APIKey))

		// Order placement routes carry their own tighter limit
		r.Group(func(r chi.Router) {
			r.Use(middleware.LimitMutations)
			r.Post("/orders/execute", app.orderHandler.Execute)
			r.Post("/orders/exit", app.orderHandler.Exit)
			r.Post("/orders/{orderID}/cancel", app.orderHandler.Cancel)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.LimitAPI)

			r.Get("/orders", app.orderHandler.List)
			r.Get("/orders/{orderID}/status", app.orderHandler.Status)
			r.Get("/runs", app.orderHandler.Runs)

			r.Get("/clients", app.clientHandler.List)
			r.Post("/clients", app.clientHandler.Create)
			r.Get("/clients/{id}", app.clientHandler.Get)
			r.Put("/clients/{id}", app.clientHandler.Update)
			r.Delete("/clients/{id}", app.clientHandler.Delete)
			r.Put("/clients/{id}/credentials", app.clientHandler.UpdateCredentials)
			r.Get("/clients/{id}/totp-qr", app.clientHandler.TOTPQR)

			r.Get("/instruments/search", app.instrumentHandler.Search)
			r.Post("/instruments/refresh", app.instrumentHandler.Refresh)
			r.Get("/instruments/exchanges", app.instrumentHandler.Exchanges)

			r.Get("/portfolio/dashboard", app.portfolioHandler.Dashboard)
			r.Get("/portfolio/{clientID}", app.portfolioHandler.Summary)
			r.Get("/portfolio/{clientID}/positions", app.portfolioHandler.Positions)

			r.Get("/tokens/{clientID}", app.sessionHandler.Status)
			r.Delete("/tokens/{clientID}", app.sessionHandler.Invalidate)
		})
	})

	app.router = r
}

// startScheduler wires the recurring jobs: dropping sessions past the
// daily cutoff and pre-warming instrument catalogs before market open.
func (app *App) startScheduler() *cron.Cron {
	if app.config.DisableScheduler {
		log.Println("Scheduler disabled")
		return nil
	}

	c := cron.New()

	if _, err := c.AddFunc(app.config.SessionSweepSpec, func() {
		if dropped := app.sessionManager.SweepExpired(); dropped > 0 {
			log.Printf("Session sweep dropped %d expired sessions", dropped)
		}
	}); err != nil {
		log.Fatalf("Invalid SESSION_SWEEP_SPEC: %v", err)
	}

	if _, err := c.AddFunc(app.config.CacheRefreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		for _, exchange := range app.config.RefreshExchanges {
			if n, err := app.instrumentCache.Refresh(ctx, exchange); err != nil {
				log.Printf("Catalog refresh for %s failed: %v", exchange, err)
			} else {
				log.Printf("Catalog refresh for %s loaded %d instruments", exchange, n)
			}
		}
	}); err != nil {
		log.Fatalf("Invalid CACHE_REFRESH_SPEC: %v", err)
	}

	c.Start()
	log.Printf("Scheduler started (session sweep %q, cache refresh %q)", app.config.SessionSweepSpec, app.config.CacheRefreshSpec)
	return c
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := app.db.Ping(); err != nil {
		http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
