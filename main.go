package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stream-check/work/checker"
	"stream-check/work/config"
	"stream-check/work/database"
	"stream-check/work/favicon"
	"stream-check/work/logger"
)

var (
	Version = "v0.1.0" // default version
)

// our main app worker
func main() {

	// load our config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetVerbosity(cfg.Verbosity)

	// open the station database
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// initialize worker pool
	workerPool, err := ants.NewPool(cfg.Concurrency, ants.WithPreAlloc(true))
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer workerPool.Release()

	// favicon repair is optional
	var faviconChecker checker.FaviconRepairer
	if cfg.Favicon {
		faviconChecker = favicon.New(cfg.UserAgent, cfg.TCPTimeout)
	}

	check := checker.New(cfg, db, workerPool, faviconChecker)

	// show info
	logger.Info("Starting stream-check %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Database: %s", cfg.DatabaseURL)
	logger.Info("  - Source: %s", cfg.Source)
	logger.Info("  - User Agent: %s", cfg.UserAgent)
	logger.Info("  - Concurrency: %d", cfg.Concurrency)
	logger.Info("  - Batch Size: %d", cfg.BatchSize)
	logger.Info("  - Staleness: %dh", cfg.StalenessHrs)
	logger.Info("  - TCP Timeout: %s", cfg.TCPTimeout)
	logger.Info("  - Max Depth: %d", cfg.MaxDepth)
	logger.Info("  - Retries: %d", cfg.Retries)
	logger.Info("  - Pause: %s", cfg.PauseSeconds)
	logger.Info("  - Rate Limit: %d/s", cfg.RateLimit)
	logger.Info("  - Loop: %v", cfg.Loop)
	logger.Info("  - Delete: %v", cfg.Delete)
	logger.Info("  - Favicon Check: %v", cfg.Favicon)
	logger.Info("  - Listen: %s", cfg.Listen)
	logger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	// metrics and status endpoints; serving is best effort and never blocks
	// the check loop
	go serveHTTP(cfg, db, check)

	// hourly stats and cleanup, independent of the check batches
	go maintenanceLoop(cfg, db)

	// the check loop itself
	for {
		processed, err := check.RunBatch()
		if err != nil {
			// store trouble skips this batch; the next cycle retries
			logger.Error("[CHECKER] batch skipped: %v", err)
			processed = 0
		}

		if !cfg.Loop {
			break
		}

		if processed == 0 {
			logger.Debug("[CHECKER] nothing due, pausing for %s", cfg.PauseSeconds)
			time.Sleep(cfg.PauseSeconds)
		} else {
			time.Sleep(time.Second)
		}
	}
}

// serveHTTP exposes prometheus metrics, a liveness endpoint and database
// stats over the configured listen address.
func serveHTTP(cfg *config.Config, db *database.DB, check *checker.Checker) {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetStats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		inFlight := make([]map[string]interface{}, 0)
		for stationUUID, started := range check.InFlightSnapshot() {
			inFlight = append(inFlight, map[string]interface{}{
				"station_uuid":    stationUUID,
				"running_seconds": int(time.Since(started).Seconds()),
			})
		}
		stats["in_flight"] = inFlight

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}).Methods("GET")

	if err := http.ListenAndServe(cfg.Listen, router); err != nil {
		logger.Error("HTTP server failed: %v", err)
	}
}

// maintenanceLoop logs hourly stats and, when the deletion policy is enabled,
// prunes long-broken stations and stale history.
func maintenanceLoop(cfg *config.Config, db *database.DB) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		runMaintenance(cfg, db)
		<-ticker.C
	}
}

func runMaintenance(cfg *config.Config, db *database.DB) {
	checksHour, _ := db.CountChecks(1, cfg.Source)
	checksDay, _ := db.CountChecks(24, cfg.Source)
	working, _ := db.CountWorking()
	broken, _ := db.CountBroken()
	due, _ := db.CountDue(cfg.StalenessHrs)
	neverWorked, _ := db.CountDeletableNeverWorked(24 * 3)
	wereWorking, _ := db.CountDeletableWereWorking(24 * 30)

	if cfg.Delete {
		if n, err := db.DeleteNeverWorked(24 * 3); err == nil && n > 0 {
			logger.Info("[MAINTENANCE] deleted %d never-working stations", n)
		}
		if n, err := db.DeleteWereWorking(24 * 30); err == nil && n > 0 {
			logger.Info("[MAINTENANCE] deleted %d formerly-working stations", n)
		}
		if n, err := db.DeleteOldChecks(24 * 30); err == nil && n > 0 {
			logger.Info("[MAINTENANCE] deleted %d old checks", n)
		}
		if n, err := db.DeleteOldClicks(24 * 30); err == nil && n > 0 {
			logger.Info("[MAINTENANCE] deleted %d old clicks", n)
		}
	}

	logger.Info("STATS: %d Checks/Hour, %d Checks/Day, %d Working stations, %d Broken stations, %d to do, deletable %d + %d",
		checksHour, checksDay, working, broken, due, neverWorked, wereWorking)
}
