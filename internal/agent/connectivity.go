package agent

import (
	"context"
	"sync"
	"time"
)

// ConnectivityMonitor tracks whether the server is reachable. It exposes the
// current level and an edge channel that fires once per offline-to-online
// transition. Level answers "are we online now"; the edge wakes the drain
// loop the moment connectivity returns.
type ConnectivityMonitor struct {
	probe    func(ctx context.Context) bool
	interval time.Duration

	mu     sync.RWMutex
	online bool
	known  bool

	edges    chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewConnectivityMonitor creates a monitor that probes with the given
// function at the given interval
func NewConnectivityMonitor(probe func(ctx context.Context) bool, interval time.Duration) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		probe:    probe,
		interval: interval,
		edges:    make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic probing until Stop is called
func (m *ConnectivityMonitor) Start() {
	go func() {
		// Probe immediately so the level is known before the first tick
		m.runProbe()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.runProbe()
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop halts probing
func (m *ConnectivityMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

// IsOnline returns the last observed connectivity level
func (m *ConnectivityMonitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnlineEdges returns a channel that receives a signal on each
// offline-to-online transition. The channel has a one-element buffer; a
// consumer that is slow to drain misses no transition, only duplicates.
func (m *ConnectivityMonitor) OnlineEdges() <-chan struct{} {
	return m.edges
}

// SetOnline records an externally observed connectivity level, firing the
// edge signal when it flips from offline to online
func (m *ConnectivityMonitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	wasKnown := m.known
	m.online = online
	m.known = true
	m.mu.Unlock()

	if online && (!wasOnline || !wasKnown) {
		select {
		case m.edges <- struct{}{}:
		default:
		}
	}
}

func (m *ConnectivityMonitor) runProbe() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.SetOnline(m.probe(ctx))
}
