// Package checker orchestrates station checks: it pulls due stations from
// the store, dispatches them onto a bounded worker pool, arms a watchdog per
// station and reconciles the fresh result against the previously known state.
package checker

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"stream-check/work/config"
	"stream-check/work/database"
	"stream-check/work/logger"
	"stream-check/work/metrics"
	"stream-check/work/resolver"
)

// ExitWatchdog is the process exit status when a station check hangs past its
// watchdog deadline. A supervisor restarting the process is the only
// recovery; a blocked socket read cannot be safely interrupted in-task.
const ExitWatchdog = 42

// retryPause is the fixed wait between resolution attempts of one station.
const retryPause = time.Second

// Store is the persistence surface the checker needs. *database.DB implements
// it; tests substitute an in-memory fake.
type Store interface {
	StationsDueForCheck(stalenessHours, limit int) ([]database.Station, error)
	InsertCheck(rec *database.CheckRecord) error
	UpdateStationCachedState(rec *database.CheckRecord) error
	UpdateStationFavicon(stationUUID, faviconURL string) error
}

// FaviconRepairer validates/repairs a station favicon. It is an independent
// side step; its result never gates the check outcome.
type FaviconRepairer interface {
	Repair(homepage, currentFavicon string) string
}

// Checker runs batches of station checks. The sleep and exit hooks exist so
// the watchdog path is observable in tests without killing the test process.
type Checker struct {
	cfg      *config.Config
	store    Store
	pool     *ants.Pool
	resolver *resolver.Resolver
	favicon  FaviconRepairer
	limiter  ratelimit.Limiter
	inFlight *xsync.MapOf[string, time.Time]

	sleep func(time.Duration)
	exit  func(code int)
}

// New wires a Checker from its collaborators. favicon may be nil when the
// favicon check is disabled.
func New(cfg *config.Config, store Store, pool *ants.Pool, favicon FaviconRepairer) *Checker {
	var limiter ratelimit.Limiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(cfg.RateLimit)
	}

	return &Checker{
		cfg:      cfg,
		store:    store,
		pool:     pool,
		resolver: resolver.New(cfg.UserAgent, cfg.TCPTimeout, cfg.MaxDepth),
		favicon:  favicon,
		limiter:  limiter,
		inFlight: xsync.NewMapOf[string, time.Time](),
		sleep:    time.Sleep,
		exit:     os.Exit,
	}
}

// InFlightSnapshot returns the stations currently being checked keyed by
// station UUID, each with the time its check started. The snapshot feeds the
// status endpoint; a station stuck here for minutes is a watchdog candidate.
func (c *Checker) InFlightSnapshot() map[string]time.Time {
	snapshot := make(map[string]time.Time)
	c.inFlight.Range(func(stationUUID string, started time.Time) bool {
		snapshot[stationUUID] = started
		return true
	})
	return snapshot
}

// RunBatch pulls one batch of due stations, checks them all and blocks until
// every worker finished. It returns the number of stations dispatched; 0
// means nothing was due and the caller may pause before the next batch.
func (c *Checker) RunBatch() (int, error) {
	stations, err := c.store.StationsDueForCheck(c.cfg.StalenessHrs, c.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	metrics.BatchSize.Set(float64(len(stations)))
	logger.Debug("[CHECKER] batch of %d stations", len(stations))

	var wg sync.WaitGroup
	for i := range stations {
		station := stations[i]

		if c.limiter != nil {
			c.limiter.Take()
		}

		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			c.checkStation(&station)
		})
		if err != nil {
			wg.Done()
			logger.Error("[CHECKER] failed to submit %s: %v", station.StationUUID, err)
		}
	}
	wg.Wait()

	return len(stations), nil
}

// checkStation runs one full station check: watchdog, resolution with
// retries, record building, persistence, favicon side step and the change
// summary against the previous state.
func (c *Checker) checkStation(station *database.Station) {
	done := make(chan struct{})
	go c.watchdog(station, done)
	defer close(done)

	c.inFlight.Store(station.StationUUID, time.Now())
	metrics.InFlight.Inc()
	defer func() {
		c.inFlight.Delete(station.StationUUID)
		metrics.InFlight.Dec()
	}()

	start := time.Now()
	outcomes := c.resolveWithRetries(station.URL)
	metrics.CheckDuration.Observe(time.Since(start).Seconds())

	rec := c.buildRecord(station, outcomes)

	if err := c.store.InsertCheck(rec); err != nil {
		logger.Error("[CHECKER] insert check for %s: %v", station.StationUUID, err)
	}
	if err := c.store.UpdateStationCachedState(rec); err != nil {
		logger.Error("[CHECKER] update station %s: %v", station.StationUUID, err)
	}

	newFavicon := station.Favicon
	if c.favicon != nil {
		newFavicon = c.favicon.Repair(station.Homepage, station.Favicon)
		if newFavicon != station.Favicon {
			if err := c.store.UpdateStationFavicon(station.StationUUID, newFavicon); err != nil {
				logger.Error("[CHECKER] update favicon for %s: %v", station.StationUUID, err)
			}
		}
	}

	if rec.CheckOK {
		metrics.StationsChecked.WithLabelValues("ok").Inc()
	} else {
		metrics.StationsChecked.WithLabelValues("broken").Inc()
		for _, o := range outcomes {
			if o.Err != nil {
				metrics.ResolveErrors.WithLabelValues(errorType(o.Err)).Inc()
			}
		}
	}

	logger.Info("[CHECKER] %s %s", c.cfg.LogURL(station.URL), Diff(station, rec, newFavicon))
}

// resolveWithRetries calls the resolver up to the configured number of
// attempts with a fixed pause in between, keeping the first attempt that
// contains a success or the last failing attempt.
func (c *Checker) resolveWithRetries(url string) []resolver.Outcome {
	var outcomes []resolver.Outcome
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.sleep(retryPause)
		}
		outcomes = c.resolver.Resolve(url, false)
		for _, o := range outcomes {
			if o.OK() {
				return outcomes
			}
		}
		logger.Debug("[CHECKER] attempt %d/%d failed for %s", attempt+1, c.cfg.Retries, c.cfg.LogURL(url))
	}
	return outcomes
}

// buildRecord turns the resolution outcomes into a fresh check record. The
// first successful StreamInfo wins; if none succeeded the record fails with
// empty codec and zero bitrate.
func (c *Checker) buildRecord(station *database.Station, outcomes []resolver.Outcome) *database.CheckRecord {
	rec := &database.CheckRecord{
		CheckUUID:   uuid.NewString(),
		StationUUID: station.StationUUID,
		Source:      c.cfg.Source,
		CheckTime:   time.Now(),
	}

	for _, o := range outcomes {
		if o.OK() {
			rec.CheckOK = true
			rec.Codec = o.Info.Codec
			rec.Bitrate = o.Info.Bitrate
			rec.Hls = o.Info.Hls
			rec.URLCache = o.Info.URL
			return rec
		}
	}

	return rec
}

// watchdog sleeps toward a coarse deadline well above the worst legitimate
// check duration, polling the done channel once per second. A check that is
// still running when the deadline passes means a socket read is hung; that
// has no safe local recovery, so the whole process exits with a status a
// supervisor can recognize.
func (c *Checker) watchdog(station *database.Station, done <-chan struct{}) {
	deadline := time.Duration(c.cfg.Retries) * c.cfg.TCPTimeout * 2

	for waited := time.Duration(0); waited < deadline; waited += time.Second {
		select {
		case <-done:
			return
		default:
		}
		c.sleep(time.Second)
	}

	select {
	case <-done:
		return
	default:
	}

	elapsed := deadline
	if started, ok := c.inFlight.Load(station.StationUUID); ok {
		elapsed = time.Since(started)
	}
	logger.Error("[WATCHDOG] station %s (%s) still running after %v (deadline %v), terminating",
		station.StationUUID, c.cfg.LogURL(station.URL), elapsed.Round(time.Second), deadline)
	c.exit(ExitWatchdog)
}
