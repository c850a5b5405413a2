// Package health periodically probes the recognition backend and tracks
// consecutive failures.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/houzhh15/scribe/cmd/server/internal/orchestrator/whisper"
	"github.com/houzhh15/scribe/pkg/logger"
)

const probeTimeout = 10 * time.Second

// ServiceStatus is the current health state of the recognition backend.
type ServiceStatus struct {
	// Service is the Recognizer name.
	Service string `json:"service"`

	// IsHealthy is false once ConsecutiveFails reaches the threshold.
	IsHealthy bool `json:"is_healthy"`

	// LastCheckTime is zero until the first probe completes.
	LastCheckTime time.Time `json:"last_check_time"`

	// ConsecutiveFails is reset to 0 by a successful probe.
	ConsecutiveFails int `json:"consecutive_fails"`

	// ErrorMessage holds the last probe error, empty when healthy.
	ErrorMessage string `json:"error_message"`
}

// HealthChecker probes a Recognizer at a fixed interval.
//
// Thread-safety: All public methods are thread-safe via sync.RWMutex.
type HealthChecker struct {
	recognizer    whisper.Recognizer
	logger        *slog.Logger
	mu            sync.RWMutex
	status        ServiceStatus
	checkInterval time.Duration
	failThreshold int
	stopOnce      sync.Once
	stopChan      chan struct{}
}

// NewHealthChecker creates a checker that starts in the healthy state.
// Call Start to begin probing.
func NewHealthChecker(recognizer whisper.Recognizer, checkInterval time.Duration, failThreshold int, log *slog.Logger) *HealthChecker {
	if log == nil {
		log = logger.Discard()
	}
	if failThreshold < 1 {
		failThreshold = 1
	}
	if checkInterval <= 0 {
		checkInterval = 5 * time.Minute
	}
	return &HealthChecker{
		recognizer:    recognizer,
		logger:        log.With("component", "health", "service", recognizer.Name()),
		checkInterval: checkInterval,
		failThreshold: failThreshold,
		stopChan:      make(chan struct{}),
		status: ServiceStatus{
			Service:   recognizer.Name(),
			IsHealthy: true,
		},
	}
}

// Start probes immediately and then every interval until Stop is called or
// ctx is done. It blocks; run it in a goroutine.
func (hc *HealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.performCheck(ctx)

	for {
		select {
		case <-ticker.C:
			hc.performCheck(ctx)
		case <-hc.stopChan:
			hc.logger.Info("health checker stopped")
			return
		case <-ctx.Done():
			hc.logger.Info("health checker context cancelled")
			return
		}
	}
}

func (hc *HealthChecker) performCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	isHealthy, err := hc.recognizer.HealthCheck(checkCtx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.status.LastCheckTime = time.Now()

	if isHealthy && err == nil {
		if !hc.status.IsHealthy {
			hc.logger.Info("recognizer recovered")
		}
		hc.status.IsHealthy = true
		hc.status.ConsecutiveFails = 0
		hc.status.ErrorMessage = ""
		return
	}

	hc.status.ConsecutiveFails++
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	hc.status.ErrorMessage = fmt.Sprintf("health check failed: %s", errMsg)

	if hc.status.ConsecutiveFails >= hc.failThreshold {
		hc.status.IsHealthy = false
		hc.logger.Error("recognizer marked unhealthy",
			slog.Int("consecutive_fails", hc.status.ConsecutiveFails),
			slog.String("error", errMsg))
	} else {
		hc.logger.Warn("health check failed",
			slog.Int("consecutive_fails", hc.status.ConsecutiveFails),
			slog.Int("threshold", hc.failThreshold),
			slog.String("error", errMsg))
	}
}

// GetStatus returns a copy of the current status.
func (hc *HealthChecker) GetStatus() ServiceStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status
}

// Stop terminates Start. Safe to call more than once.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() { close(hc.stopChan) })
}
