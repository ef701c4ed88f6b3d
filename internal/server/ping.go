package server

import (
	"sync"
	"time"
)

// pingTimer wraps the optional max-ping-time watchdog (spec §4.8). A
// maxPingTime of 0 means "disabled": start is a no-op and reset/stop are
// safe to call regardless.
type pingTimer struct {
	maxPingTime time.Duration
	onTimeout   func()

	mu       sync.Mutex
	timer    *time.Timer
	hasFired bool
	running  bool
}

func newPingTimer(maxPingTime time.Duration, onTimeout func()) *pingTimer {
	return &pingTimer{maxPingTime: maxPingTime, onTimeout: onTimeout}
}

func (p *pingTimer) start() {
	if p.maxPingTime <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.hasFired = false
	p.timer = time.AfterFunc(p.maxPingTime, p.fire)
}

func (p *pingTimer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.timer == nil {
		return
	}
	p.timer.Reset(p.maxPingTime)
}

func (p *pingTimer) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
	}
}

func (p *pingTimer) expired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasFired
}

func (p *pingTimer) fire() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.hasFired = true
	p.running = false
	p.mu.Unlock()
	p.onTimeout()
}
