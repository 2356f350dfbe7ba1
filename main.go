package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/username/folioimport/src/config"
	"github.com/username/folioimport/src/database"
	"github.com/username/folioimport/src/handlers"
	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/services"
	"github.com/username/folioimport/src/storage"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Folioimport backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	positionStore := storage.NewPositionStore(database.DB)
	ocrClient := services.NewOCRClient(config.Cfg.OCRServiceURL, config.Cfg.OCRTimeout)
	symbolService := services.NewSymbolService(config.Cfg.SymbolDataPath)

	importService := services.NewImportService(
		positionStore, ocrClient,
		config.Cfg.ImportSessionTTL,
		config.Cfg.MaxImportRows,
		config.Cfg.WarningDisplayLimit,
	)

	importHandler := handlers.NewImportHandler(importService)
	portfolioHandler := handlers.NewPortfolioHandler(positionStore)
	symbolHandler := handlers.NewSymbolHandler(symbolService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/import", importHandler.HandleUploadCSV)
	apiRouter.HandleFunc("POST /api/import/image", importHandler.HandleUploadImage)
	apiRouter.HandleFunc("GET /api/import/{id}", importHandler.HandleGetSession)
	apiRouter.HandleFunc("POST /api/import/{id}/wizard/select", importHandler.HandleWizardSelect)
	apiRouter.HandleFunc("POST /api/import/{id}/wizard/advance", importHandler.HandleWizardAdvance)
	apiRouter.HandleFunc("POST /api/import/{id}/wizard/retreat", importHandler.HandleWizardRetreat)
	apiRouter.HandleFunc("POST /api/import/{id}/wizard/finish", importHandler.HandleWizardFinish)
	apiRouter.HandleFunc("POST /api/import/{id}/exclusions", importHandler.HandleExclusions)
	apiRouter.HandleFunc("PATCH /api/import/{id}/positions/{ticker}", importHandler.HandleEditPosition)
	apiRouter.HandleFunc("POST /api/import/{id}/commit", importHandler.HandleCommit)
	apiRouter.HandleFunc("DELETE /api/import/{id}", importHandler.HandleCancel)

	apiRouter.HandleFunc("GET /api/holdings", portfolioHandler.HandleGetHoldings)
	apiRouter.HandleFunc("DELETE /api/holdings/all", portfolioHandler.HandleClearHoldings)

	apiRouter.HandleFunc("GET /api/symbols/search", symbolHandler.HandleSearch)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Folioimport backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
