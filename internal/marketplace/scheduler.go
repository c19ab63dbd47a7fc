package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = time.Minute

// ExpiryScheduler runs the listing expiry sweep on a cron schedule.
type ExpiryScheduler struct {
	cron    *cron.Cron
	service *Service
	spec    string
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

// NewExpiryScheduler takes a six-field cron spec (with seconds), e.g.
// "0 */5 * * * *".
func NewExpiryScheduler(service *Service, spec string, logger *zap.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		cron:    cron.New(cron.WithSeconds()),
		service: service,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the sweep and starts the cron scheduler
func (m *ExpiryScheduler) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("expiry scheduler already running")
	}

	if _, err := m.cron.AddFunc(m.spec, m.Sweep); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", m.spec, err)
	}
	m.cron.Start()
	m.running = true

	m.logger.Info("Listing expiry scheduler started", zap.String("schedule", m.spec))
	return nil
}

// Stop waits for a running sweep to finish
func (m *ExpiryScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}

	ctx := m.cron.Stop()
	<-ctx.Done()
	m.running = false
	m.logger.Info("Listing expiry scheduler stopped")
}

// Sweep expires overdue listings once.
func (m *ExpiryScheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	expired, err := m.service.ExpireListings(ctx, time.Now().UTC())
	if err != nil {
		m.logger.Error("Listing expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		m.logger.Info("Expired marketplace listings", zap.Int("count", expired))
	}
}
