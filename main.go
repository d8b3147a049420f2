package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradelens/backend/src/config"
	"github.com/username/tradelens/backend/src/handlers"
	"github.com/username/tradelens/backend/src/llm"
	"github.com/username/tradelens/backend/src/logger"
	"github.com/username/tradelens/backend/src/ocr"
	"github.com/username/tradelens/backend/src/parsers"
	"github.com/username/tradelens/backend/src/processors"
	"github.com/username/tradelens/backend/src/services"
	"github.com/username/tradelens/backend/src/storage"
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

		if origin == config.Cfg.AllowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, If-None-Match")
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
	logger.L.Info("TradeLens backend server starting...")

	logger.L.Info("Initializing storage...", "tradeLog", config.Cfg.TradeLogPath)
	tradeLog, err := storage.NewTradeLog(config.Cfg.TradeLogPath)
	if err != nil {
		logger.L.Error("Failed to initialize trade log", "error", err)
		os.Exit(1)
	}
	fileStore, err := storage.NewFileStore(config.Cfg.UploadsDir, config.Cfg.ProcessedDir)
	if err != nil {
		logger.L.Error("Failed to initialize image store", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Storage initialized successfully.")

	logger.L.Info("Initializing OCR engine...", "baseURL", config.Cfg.OCRBaseURL)
	ocrEngine := ocr.NewHTTPEngine(config.Cfg.OCRBaseURL, config.Cfg.OCRTimeout, config.Cfg.OCRRateLimit)

	var analyzer llm.Analyzer
	if config.Cfg.DeepSeekAPIKey != "" {
		logger.L.Info("Initializing AI analyzer...", "model", config.Cfg.DeepSeekModel)
		analyzer = llm.NewDeepSeekAnalyzer(
			config.Cfg.DeepSeekAPIKey, config.Cfg.DeepSeekAPIBase,
			config.Cfg.DeepSeekModel, config.Cfg.DeepSeekTimeout,
		)
	} else {
		logger.L.Warn("No AI API key configured, relying on pattern matching only")
		analyzer = llm.NewNoopAnalyzer()
	}

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	extractionService := services.NewExtractionService(
		ocrEngine, analyzer, parsers.NewFieldParser(),
		processors.NewStatsProcessor(), processors.NewSearchProcessor(),
		tradeLog, fileStore, reportCache,
	)

	extractHandler := handlers.NewExtractHandler(extractionService)
	statsHandler := handlers.NewStatsHandler(extractionService)
	imageHandler := handlers.NewImageHandler(extractionService, fileStore)
	logHandler := handlers.NewLogHandler(extractionService)

	logger.L.Info("Configuring routes...")
	mux := http.NewServeMux()

	mux.HandleFunc("POST /extract-trade-upload", extractHandler.HandleExtractUpload)
	mux.HandleFunc("POST /extract-trade", extractHandler.HandleExtractPath)
	mux.HandleFunc("POST /extract-trade-batch", extractHandler.HandleExtractBatch)
	mux.HandleFunc("POST /search-trades", statsHandler.HandleSearchTrades)
	mux.HandleFunc("GET /trading-stats", statsHandler.HandleTradingStats)
	mux.HandleFunc("GET /list-images", imageHandler.HandleListImages)
	mux.HandleFunc("GET /trade-log", logHandler.HandleTradeLog)
	mux.HandleFunc("GET /uploads/{filename}", imageHandler.HandleServeUpload)
	mux.HandleFunc("GET /processed/{date}/{filename}", imageHandler.HandleServeProcessed)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "TradeLens backend is running"})
			return
		}
		logger.L.Warn("Path not found", "method", r.Method, "path", r.URL.Path)
		http.NotFound(w, r)
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(mux))

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
