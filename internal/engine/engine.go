// Package engine wires the per-target monitors, broadcaster, and report
// aggregator into one lifecycle with graceful shutdown.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netpulse/netpulse/internal/broadcast"
	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/internal/metrics"
	"github.com/netpulse/netpulse/internal/monitor"
	"github.com/netpulse/netpulse/internal/probe"
	"github.com/netpulse/netpulse/internal/report"
	"github.com/netpulse/netpulse/internal/storage"
	"github.com/netpulse/netpulse/pkg/models"
)

// DefaultStopTimeout bounds how long Stop waits for goroutines to drain.
const DefaultStopTimeout = 10 * time.Second

// Options configures an Engine.
type Options struct {
	Config  *config.Config
	Store   storage.EventStore
	Alerts  monitor.AlertSender
	Metrics *metrics.Metrics
	Logger  *logging.Logger

	// Prober overrides the default ICMP prober (used in tests)
	Prober probe.Prober
	// StopTimeout overrides DefaultStopTimeout
	StopTimeout time.Duration
}

// Engine owns the monitoring runtime: one goroutine per enabled target plus
// the broadcaster and the report aggregator.
type Engine struct {
	cfg         *config.Config
	store       storage.EventStore
	monitors    map[string]*monitor.TargetMonitor
	broadcaster *broadcast.Broadcaster
	aggregator  *report.Aggregator
	logger      *logging.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates an engine from configuration.
func New(opts Options) *Engine {
	logger := opts.Logger
	prober := opts.Prober
	if prober == nil {
		prober = probe.NewICMPProber(opts.Config.Monitoring.PingTimeout, logger)
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	e := &Engine{
		cfg:         opts.Config,
		store:       opts.Store,
		monitors:    make(map[string]*monitor.TargetMonitor),
		logger:      logger.WithComponent(logging.ComponentEngine),
		stopTimeout: stopTimeout,
	}

	for _, target := range opts.Config.Monitoring.Targets {
		if !target.IsEnabled() {
			e.logger.WithFields(map[string]interface{}{
				"target": target.Name,
			}).Info("Skipping disabled target")
			continue
		}
		e.monitors[target.Name] = monitor.New(monitor.Options{
			Target:       target,
			ThresholdMS:  opts.Config.Monitoring.LatencyThresholdMS,
			ProbeTimeout: opts.Config.Monitoring.PingTimeout,
			WindowSize:   opts.Config.Monitoring.WindowSize,
			Prober:       prober,
			Store:        opts.Store,
			Alerts:       opts.Alerts,
			Metrics:      opts.Metrics,
			Logger:       logger,
		})
	}

	e.broadcaster = broadcast.New(
		e.Snapshots,
		opts.Config.Broadcast.Interval,
		opts.Config.Broadcast.TailSize,
		opts.Metrics,
		logger,
	)

	e.aggregator = report.New(report.Options{
		Store:         opts.Store,
		Interval:      opts.Config.Reports.Interval,
		PruneInterval: opts.Config.Storage.PruneInterval,
		RetentionDays: opts.Config.Storage.RetentionDays,
		Metrics:       opts.Metrics,
		Logger:        logger,
	})

	return e
}

// Start launches all runtime goroutines. The storage health check is the
// only fatal path: a monitor cannot run against a dead store.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine already started")
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := e.store.HealthCheck(checkCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	e.cancel = cancelRun
	e.running = true

	for _, m := range e.monitors {
		e.wg.Add(1)
		go func(m *monitor.TargetMonitor) {
			defer e.wg.Done()
			m.Run(runCtx)
		}(m)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.broadcaster.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.aggregator.Run(runCtx)
	}()

	e.logger.WithEvent(logging.EventEngineStart).WithFields(map[string]interface{}{
		"targets": len(e.monitors),
	}).Info("Engine started")

	return nil
}

// Stop cancels all goroutines, waits up to the stop timeout for them to
// drain, then runs the final aggregation pass so the current day's report
// is persisted.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var stopErr error
	select {
	case <-done:
	case <-time.After(e.stopTimeout):
		stopErr = fmt.Errorf("engine shutdown timed out after %s", e.stopTimeout)
		e.logger.Warn("Engine goroutines did not drain before timeout")
	}

	finalCtx, cancelFinal := context.WithTimeout(context.Background(), e.stopTimeout)
	defer cancelFinal()
	e.aggregator.Final(finalCtx)

	e.logger.WithEvent(logging.EventEngineStop).Info("Engine stopped")
	return stopErr
}

// Snapshots returns the current state of every monitored target with up to
// tail recent results each.
func (e *Engine) Snapshots(tail int) map[string]models.TargetSnapshot {
	snapshots := make(map[string]models.TargetSnapshot, len(e.monitors))
	for name, m := range e.monitors {
		snapshots[name] = m.Snapshot(tail)
	}
	return snapshots
}

// Snapshot returns one target's state, or false when the target is unknown.
func (e *Engine) Snapshot(name string, tail int) (models.TargetSnapshot, bool) {
	m, ok := e.monitors[name]
	if !ok {
		return models.TargetSnapshot{}, false
	}
	return m.Snapshot(tail), true
}

// Broadcaster exposes the dashboard broadcaster for transport handlers.
func (e *Engine) Broadcaster() *broadcast.Broadcaster {
	return e.broadcaster
}

// Store exposes the event store for read-side API handlers.
func (e *Engine) Store() storage.EventStore {
	return e.store
}

// TargetNames returns the monitored target names.
func (e *Engine) TargetNames() []string {
	names := make([]string, 0, len(e.monitors))
	for name := range e.monitors {
		names = append(names, name)
	}
	return names
}
