// Package credentials implements the per-pool API key dispensers. Each pool
// (main, tournament) is fully independent: its own keys, its own waiters,
// its own mutex. A leased credential is used for exactly one request.
package credentials

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"skirmish/internal/metrics"
)

const (
	windowSpan         = time.Minute
	maxBackoff         = 64 * time.Second
	throttleEpisodeGap = 2 * time.Minute
)

// Credential is one API key plus its dispatch window. All fields are
// guarded by the owning pool's mutex.
type Credential struct {
	secret   string
	rpmLimit int

	window       []time.Time // Reserved dispatch slots, oldest first, len <= rpmLimit
	throttles    int         // Consecutive throttles in the current episode
	lastThrottle time.Time
	blockedUntil time.Time
}

// Secret returns the raw key for the Authorization header.
func (c *Credential) Secret() string { return c.secret }

// Pool is a single-mutex dispenser over a disjoint set of credentials.
type Pool struct {
	name   string
	logger zerolog.Logger

	mu    sync.Mutex
	creds []*Credential
	next  int // Round-robin scan start

	now func() time.Time
}

// NewPool builds a dispenser. Every key shares the same rpm budget.
func NewPool(name string, secrets []string, rpmLimit int, logger zerolog.Logger) (*Pool, error) {
	if len(secrets) == 0 {
		return nil, fmt.Errorf("credential pool %s has no keys", name)
	}
	if rpmLimit <= 0 {
		return nil, fmt.Errorf("credential pool %s rpm limit must be positive", name)
	}
	p := &Pool{
		name:   name,
		logger: logger.With().Str("component", "credentials").Str("pool", name).Logger(),
		now:    time.Now,
	}
	for _, s := range secrets {
		p.creds = append(p.creds, &Credential{secret: s, rpmLimit: rpmLimit})
	}
	return p, nil
}

// Name identifies the pool in logs and metrics.
func (p *Pool) Name() string { return p.name }

// Size reports the number of keys in the pool.
func (p *Pool) Size() int { return len(p.creds) }

// Lease returns a credential for one request, blocking until a key has
// budget. The dispatch slot is reserved under the lock before the lease
// is handed out, so concurrent lessees cannot overshoot a key's rpm
// budget, and throttled dispatches count against it too. The only error
// is a cancelled context.
func (p *Pool) Lease(ctx context.Context) (*Credential, error) {
	start := p.now()
	for {
		cred, wait := p.tryLease()
		if cred != nil {
			metrics.CredentialWait.WithLabelValues(p.name).Observe(p.now().Sub(start).Seconds())
			return cred, nil
		}

		p.logger.Debug().Dur("wait", wait).Msg("all credentials exhausted, waiting")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryLease scans round-robin for an available credential and reserves
// its dispatch slot. When none is available it returns the wait until
// the earliest predicted availability.
func (p *Pool) tryLease() (*Credential, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	best := time.Duration(-1)
	for i := 0; i < len(p.creds); i++ {
		idx := (p.next + i) % len(p.creds)
		c := p.creds[idx]

		wait := c.availableIn(now)
		if wait <= 0 {
			c.reserve(now)
			p.next = (idx + 1) % len(p.creds)
			return c, 0
		}
		if best < 0 || wait < best {
			best = wait
		}
	}
	// Small cushion so the retry lands after the boundary, not on it.
	return nil, best + 10*time.Millisecond
}

// availableIn reports how long until this credential can dispatch. Zero or
// negative means now. A lease is available iff the window holds fewer than
// rpmLimit entries or the oldest entry has aged past 60 s.
func (c *Credential) availableIn(now time.Time) time.Duration {
	wait := time.Duration(0)
	if now.Before(c.blockedUntil) {
		wait = c.blockedUntil.Sub(now)
	}
	if len(c.window) >= c.rpmLimit {
		if w := windowSpan - now.Sub(c.window[0]); w > wait {
			wait = w
		}
	}
	return wait
}

// reserve logs a dispatch slot into the window. Called with the pool
// mutex held.
func (c *Credential) reserve(t time.Time) {
	c.window = append(c.window, t)
	if len(c.window) > c.rpmLimit {
		c.window = c.window[len(c.window)-c.rpmLimit:]
	}
}

// RecordThrottled pauses the credential with exponential backoff
// min(2^n, 64) s plus jitter. Throttles more than one episode gap apart
// start a fresh backoff sequence.
func (p *Pool) RecordThrottled(c *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !c.lastThrottle.IsZero() && now.Sub(c.lastThrottle) > throttleEpisodeGap {
		c.throttles = 0
	}
	c.throttles++
	c.lastThrottle = now

	backoff := time.Duration(1<<uint(c.throttles)) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	c.blockedUntil = now.Add(backoff + jitter)

	p.logger.Warn().
		Int("consecutive_throttles", c.throttles).
		Dur("backoff", backoff).
		Msg("credential throttled by upstream")
}
