package services

import (
	"context"
	"sync"
	"time"

	"github.com/fieldclock/server/internal/observability"
	"github.com/fieldclock/server/internal/repository"
)

// MaintenanceService periodically removes commit records older than the
// retention window. Records must outlive the replay TTL: while the replay
// guard still admits an event ID, the ledger must be able to answer for it.
type MaintenanceService struct {
	commitRepo repository.CommitRecordRepo
	retention  time.Duration
	interval   time.Duration
	metrics    *observability.ClockMetrics

	mu       sync.Mutex
	stopChan chan struct{}
	ticker   *time.Ticker
}

// NewMaintenanceService creates a new MaintenanceService
func NewMaintenanceService(commitRepo repository.CommitRecordRepo, retention, interval time.Duration, metrics *observability.ClockMetrics) *MaintenanceService {
	return &MaintenanceService{
		commitRepo: commitRepo,
		retention:  retention,
		interval:   interval,
		metrics:    metrics,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the periodic ledger sweep
func (s *MaintenanceService) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return
	}
	s.stopChan = make(chan struct{})
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.sweep()
			case <-s.stopChan:
				s.mu.Lock()
				s.ticker.Stop()
				s.ticker = nil
				s.mu.Unlock()
				return
			}
		}
	}()
}

// Stop halts the periodic sweep
func (s *MaintenanceService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}
	close(s.stopChan)
}

// SweepNow runs a single sweep immediately and returns the number of
// records removed
func (s *MaintenanceService) SweepNow(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.commitRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerSweep(ctx, removed)
	}
	return removed, nil
}

func (s *MaintenanceService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.SweepNow(ctx)
	if err != nil {
		observability.Errorf("Ledger sweep failed: %v", err)
		return
	}
	if removed > 0 {
		observability.Infof("Ledger sweep removed %d expired commit records", removed)
	}
}
