package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/api/option"

	"github.com/jredh-dev/surpluserve/config"
	"github.com/jredh-dev/surpluserve/internal/auth"
	"github.com/jredh-dev/surpluserve/internal/donation"
	"github.com/jredh-dev/surpluserve/internal/events"
	"github.com/jredh-dev/surpluserve/internal/store"
	"github.com/jredh-dev/surpluserve/internal/token"
	"github.com/jredh-dev/surpluserve/internal/web/handlers"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("surpluserve-server %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	cfg := config.Load()
	ctx := context.Background()

	if cfg.JWT.SigningKey == "" {
		key, err := token.GenerateSigningKey()
		if err != nil {
			log.Fatalf("Failed to generate signing key: %v", err)
		}
		log.Println("WARNING: JWT_SIGNING_KEY is empty — generated an ephemeral key (tokens will not survive restarts)")
		cfg.JWT.SigningKey = key
	}

	// Persistence.
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Optional Firebase identity provider.
	var authClient *firebaseauth.Client
	if cfg.Firebase.ProjectID != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, firebaseOptions(cfg)...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase app: %v", err)
		}
		authClient, err = app.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase auth client: %v", err)
		}
	}

	tokens := token.New(cfg.JWT.SigningKey, cfg.JWT.Issuer, authClient)
	authService := auth.New(st)

	// Optional claim-event publisher.
	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.ClaimTopic)
		defer publisher.Close()
		log.Printf("Claim events enabled (topic %q)", cfg.Kafka.ClaimTopic)
	}

	donations := donation.New(st, publisher)
	h := handlers.New(authService, donations, tokens, time.Duration(cfg.JWT.TokenTTL)*time.Second)

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireAuth(tokens))
		r.Use(handlers.RequireRole(models.RoleDonor))
		r.Get("/donor/dashboard", h.DonorDashboard)
		r.Post("/donor/donations", h.CreateDonation)
	})

	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireAuth(tokens))
		r.Use(handlers.RequireRole(models.RoleRecipient))
		r.Get("/recipient/dashboard", h.RecipientDashboard)
		r.Get("/recipient/dashboard/{id}", h.DonationByID)
		r.Post("/recipient/claim/{id}", h.Claim)
		r.Post("/recipient/search", h.Search)
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("SurplusServe server starting on %s (env: %s, store: %s)", addr, cfg.Server.Env, cfg.Store.Driver)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// openStore selects the persistence driver from configuration.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.OpenSQLite(cfg.Store.SQLitePath)
	case "firestore":
		if cfg.Firebase.ProjectID == "" {
			return nil, fmt.Errorf("firestore driver requires FIREBASE_PROJECT_ID")
		}
		client, err := firestore.NewClientWithDatabase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.FirestoreDatabase, firebaseOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		return store.NewFirestore(client), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func firebaseOptions(cfg *config.Config) []option.ClientOption {
	if cfg.Firebase.CredentialsPath == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.Firebase.CredentialsPath)}
}
