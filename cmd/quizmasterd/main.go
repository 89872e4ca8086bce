package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"

	api "github.com/mind-engage/quizmaster/internal/api/http"
	auth "github.com/mind-engage/quizmaster/internal/auth/middleware"
	"github.com/mind-engage/quizmaster/internal/catalog"
	"github.com/mind-engage/quizmaster/internal/config"
	"github.com/mind-engage/quizmaster/internal/db"
	"github.com/mind-engage/quizmaster/internal/events"
	"github.com/mind-engage/quizmaster/internal/leaderboard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	adminHash := cfg.AdminPassHash
	if cfg.AdminPassword != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash admin password: %v", err)
		}
		adminHash = string(h)
	}
	if err := db.EnsureAdmin(ctx, dbh, cfg.AdminEmail, adminHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	store := catalog.NewSQLStore(dbh, cfg.DBDriver)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)

	// --- optional backends ---
	var board leaderboard.Board = leaderboard.NewSQLBoard(dbh)
	if cfg.RedisAddr != "" {
		rb, err := leaderboard.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Printf("redis unavailable, leaderboard falls back to sql: %v", err)
		} else {
			defer rb.Close()
			board = rb
		}
	}

	var pub events.Publisher
	if cfg.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.AMQPURL, events.Exchange)
		if err != nil {
			log.Printf("amqp unavailable, events stay local: %v", err)
		} else {
			defer p.Close()
			pub = p
		}
	}
	eventLog := events.NewLog(dbh, cfg.EventSiteID)
	recorder := events.NewRecorder(eventLog, pub)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{auth.TokenHeader, "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		DB:                 dbh,
		Store:              store,
		Auth:               authSvc,
		Board:              board,
		Events:             recorder,
		EventLog:           eventLog,
		EnableRegistration: cfg.EnableRegistration,
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
