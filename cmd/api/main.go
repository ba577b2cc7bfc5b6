package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/ledgerscan/internal/api/handlers"
	"github.com/dvloznov/ledgerscan/internal/api/middleware"
	"github.com/dvloznov/ledgerscan/internal/blobstore"
	"github.com/dvloznov/ledgerscan/internal/categorizer"
	"github.com/dvloznov/ledgerscan/internal/config"
	"github.com/dvloznov/ledgerscan/internal/dupdetect"
	"github.com/dvloznov/ledgerscan/internal/extractor"
	infraBQ "github.com/dvloznov/ledgerscan/internal/infra/bigquery"
	"github.com/dvloznov/ledgerscan/internal/ingest"
	jobsmem "github.com/dvloznov/ledgerscan/internal/jobs/inmemory"
	"github.com/dvloznov/ledgerscan/internal/logger"
	"github.com/dvloznov/ledgerscan/internal/scanner"
	"github.com/dvloznov/ledgerscan/internal/statement"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := context.Background()

	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT is required")
	}

	// Storage backends
	docStore, err := infraBQ.NewDocumentStore(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer docStore.Close()

	ledger, err := infraBQ.NewLedger(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger store")
	}
	defer ledger.Close()

	var blobs blobstore.BlobStore
	if cfg.GCSBucket != "" {
		gcs, err := blobstore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS blob store")
		}
		defer gcs.Close()
		blobs = gcs
	} else {
		log.Warn().Msg("No GCS bucket configured - storing uploads in memory")
		blobs = blobstore.NewMemoryStore()
	}

	// Job infrastructure
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(cfg.QueueDepth, cfg.WorkerCount, jobStore)

	// Ingestion service
	suggester, err := categorizer.New(ledger, categorizer.NewMemoryKeywordStore(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create category suggester")
	}

	svc := ingest.NewService(ingest.Deps{
		Store:             docStore,
		Blobs:             blobs,
		Scanner:           scanner.New(cfg.MaxUploadBytes),
		Extractor:         extractor.New(),
		Parsers:           statement.NewRegistry(),
		Detector:          dupdetect.New(ledger, cfg.DuplicateThreshold, log),
		Suggester:         suggester,
		Ledger:            ledger,
		Queue:             jobQueue,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		ProcessingTimeout: cfg.ProcessingTimeout,
		Logger:            log,
	})

	// Start the in-process workers consuming the queue
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.WorkerCount).Msg("Starting job workers")
		if err := jobQueue.Start(workerCtx, svc.HandleJob); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	// Reaper sweeps documents stuck in PROCESSING
	reaper := ingest.NewReaper(docStore, cfg.StuckRunAge, cfg.ReaperSchedule, log)
	if err := reaper.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reaper")
	}
	defer reaper.Stop()

	// Initialize handlers
	documentsHandler := handlers.NewDocumentsHandler(svc, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/documents/")
		documentID, action, _ := strings.Cut(rest, "/")
		if documentID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Document ID is required")
			return
		}

		switch {
		case r.Method == http.MethodGet && action == "status":
			documentsHandler.Status(w, r, documentID)
		case r.Method == http.MethodGet && action == "preview":
			documentsHandler.Preview(w, r, documentID)
		case r.Method == http.MethodPost && action == "import":
			documentsHandler.Import(w, r, documentID)
		case r.Method == http.MethodPost && action == "retry":
			documentsHandler.Retry(w, r, documentID)
		case r.Method == http.MethodDelete && action == "":
			documentsHandler.Delete(w, r, documentID)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	// Health stays outside auth so load balancers can probe it
	root := http.NewServeMux()
	root.Handle("/health", middleware.Recovery(log)(mux))
	root.Handle("/", handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
