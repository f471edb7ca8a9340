// Package services contains panic mode management
package services

import (
	"log/slog"
	"sync"
	"time"
)

// PanicMode is the operator's emergency switch that pauses every automated
// reply. The zero value is inactive.
type PanicMode struct {
	mu          sync.RWMutex
	active      bool
	activatedBy string
	activatedAt time.Time
	reason      string
}

// PanicStatus is a point-in-time copy of the switch state
type PanicStatus struct {
	Active      bool      `json:"active"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedBy string    `json:"activated_by,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
}

// NewPanicMode creates an inactive switch
func NewPanicMode() *PanicMode {
	return &PanicMode{}
}

// IsActive returns whether replies are paused. A nil switch is never active.
func (p *PanicMode) IsActive() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Enable pauses all replies
func (p *PanicMode) Enable(reason, activatedBy string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = true
	p.reason = reason
	p.activatedBy = activatedBy
	p.activatedAt = time.Now()

	slog.Warn("🚨 PANIC MODE ACTIVATED",
		"reason", reason,
		"activated_by", activatedBy,
	)
}

// Disable resumes replies
func (p *PanicMode) Disable(deactivatedBy string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	duration := time.Since(p.activatedAt)

	p.active = false
	p.reason = ""
	p.activatedBy = ""
	p.activatedAt = time.Time{}

	slog.Info("✅ PANIC MODE DEACTIVATED",
		"deactivated_by", deactivatedBy,
		"duration", duration,
	)
}

// Status returns a snapshot of the switch
func (p *PanicMode) Status() PanicStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PanicStatus{
		Active:      p.active,
		Reason:      p.reason,
		ActivatedBy: p.activatedBy,
		ActivatedAt: p.activatedAt,
	}
}
