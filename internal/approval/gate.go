// Package approval brokers a single in-flight "may this caller read these
// secrets" decision between an untrusted local caller and a trusted
// decision source, with a hard-bounded wait.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gpdir16/LocalKeys/internal/audit"
)

// DefaultTimeout bounds how long a request waits for a human decision.
const DefaultTimeout = 30 * time.Second

const (
	reasonNoHandler   = "No approval handler available"
	reasonPending     = "Another approval request is pending"
	reasonUnavailable = "Approval dialog unavailable"
	reasonCancelled   = "Request cancelled"
)

// Request describes one pending approval. The decision source receives it
// at most once.
type Request struct {
	ID          string
	ProjectName string
	Keys        []string
	RequestedAt time.Time
	Deadline    time.Time
}

// Decision is the terminal outcome of a request. Reason never carries
// secret material.
type Decision struct {
	Approved bool
	Reason   string
}

// DecisionSource is the external collaborator (normally a GUI) that
// approves or denies a pending request. It must resolve exactly once; the
// gate stops waiting when ctx expires.
type DecisionSource interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// Gate serializes approval decisions: at most one request is outstanding at
// a time, and a second concurrent request fails fast rather than merging
// with the first one's decision.
type Gate struct {
	mu      sync.Mutex
	source  DecisionSource
	pending bool

	timeout time.Duration
	log     *audit.Log
}

func New(log *audit.Log, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{log: log, timeout: timeout}
}

// SetSource registers the decision source. A nil source makes every request
// fail closed.
func (g *Gate) SetSource(src DecisionSource) {
	g.mu.Lock()
	g.source = src
	g.mu.Unlock()
}

// Request asks the decision source whether the caller may read the named
// keys. Exactly one of four terminal events resolves it: approve, deny,
// timeout, or an unreachable decision surface; whichever happens first
// wins and the others are ignored. Every resolution path releases the
// single slot and is recorded to the audit log.
func (g *Gate) Request(ctx context.Context, project string, keys []string) Decision {
	g.mu.Lock()
	src := g.source
	if src == nil {
		g.mu.Unlock()
		return g.resolve(project, keys, Decision{Approved: false, Reason: reasonNoHandler})
	}
	if g.pending {
		g.mu.Unlock()
		return g.resolve(project, keys, Decision{Approved: false, Reason: reasonPending})
	}
	g.pending = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.pending = false
		g.mu.Unlock()
	}()

	now := time.Now()
	req := Request{
		ID:          uuid.NewString(),
		ProjectName: project,
		Keys:        keys,
		RequestedAt: now,
		Deadline:    now.Add(g.timeout),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		d   Decision
		err error
	}
	// Buffered so a late decision never blocks the source goroutine after
	// the timeout already won.
	ch := make(chan outcome, 1)
	go func() {
		d, err := src.Decide(ctx, req)
		ch <- outcome{d: d, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return g.resolve(project, keys, Decision{Approved: false, Reason: reasonUnavailable})
		}
		return g.resolve(project, keys, o.d)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return g.resolve(project, keys, Decision{Approved: false, Reason: timeoutReason(g.timeout)})
		}
		return g.resolve(project, keys, Decision{Approved: false, Reason: reasonCancelled})
	}
}

// resolve records the terminal outcome and hands it back.
func (g *Gate) resolve(project string, keys []string, d Decision) Decision {
	if g.log != nil {
		verdict := "denied"
		if d.Approved {
			verdict = "approved"
		}
		msg := fmt.Sprintf("access to %s in project %s %s", strings.Join(keys, ","), project, verdict)
		if !d.Approved && d.Reason != "" {
			msg += ": " + d.Reason
		}
		_ = g.log.Append(audit.CategoryAccess, msg)
	}
	return d
}

func timeoutReason(d time.Duration) string {
	return fmt.Sprintf("Timeout after %d seconds", int(d.Round(time.Second)/time.Second))
}
