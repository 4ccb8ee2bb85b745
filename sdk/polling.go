package sdk

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval matches the server's advertised fallback cadence.
const DefaultPollInterval = 30 * time.Second

// Poller drives the degraded refresh loop while no live stream is open.
// Start and Stop are idempotent.
type Poller struct {
	interval time.Duration
	refresh  func(context.Context)

	mu   sync.Mutex
	stop chan struct{}
}

func NewPoller(interval time.Duration, refresh func(context.Context)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, refresh: refresh}
}

func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop

	go p.loop(stop)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *Poller) loop(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			p.refresh(ctx)
			cancel()
		}
	}
}
