// Package ratelimit implements the C6 rate limiter: per-user read/write
// cooldowns, a global in-flight concurrency cap, and optional per-account
// write serialization — all cancellation-safe, so a caller cancelled mid-
// acquire never leaks a held resource.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimited is returned when a per-user cooldown has not yet elapsed.
type RateLimited struct {
	WaitSec float64
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("ratelimit: rate limited, retry in %.1fs", e.WaitSec)
}

// Config holds the limiter's tunables.
type Config struct {
	ReadCooldown           time.Duration
	WriteCooldown          time.Duration
	GlobalConcurrency      int
	AccountWriteSerialized bool
}

// Limiter arbitrates access to the shared gateway across all accounts.
type Limiter struct {
	cfg Config

	mu         sync.Mutex
	nextRead   map[string]time.Time
	nextWrite  map[string]time.Time

	global chan struct{}

	accountMu sync.Mutex
	accounts  map[string]*sync.Mutex
}

// New constructs a Limiter. GlobalConcurrency must be ≥ 1.
func New(cfg Config) *Limiter {
	if cfg.GlobalConcurrency < 1 {
		cfg.GlobalConcurrency = 1
	}
	return &Limiter{
		cfg:       cfg,
		nextRead:  make(map[string]time.Time),
		nextWrite: make(map[string]time.Time),
		global:    make(chan struct{}, cfg.GlobalConcurrency),
		accounts:  make(map[string]*sync.Mutex),
	}
}

// Lease is returned by Acquire. Release is idempotent and releases resources
// in reverse acquisition order (per-account mutex, then global semaphore).
type Lease struct {
	limiter    *Limiter
	accountKey string
	heldGlobal bool
	heldAcct   bool
	released   bool
	mu         sync.Mutex
}

// Acquire runs the three-step acquisition in order: (1) check and advance
// the per-user, per-class cooldown under the state mutex; (2) acquire the
// global semaphore; (3) if isWrite and accountWriteSerialized and accountID
// is non-empty, acquire the per-account mutex.
//
// If ctx is cancelled while blocked on step 2 or 3, every resource already
// acquired (including the semaphore slot) is released before returning —
// the cancellation-safety invariant the spec requires.
func (l *Limiter) Acquire(ctx context.Context, user string, isWrite bool, accountID string) (*Lease, error) {
	if err := l.checkCooldown(user, isWrite); err != nil {
		return nil, err
	}

	lease := &Lease{limiter: l, accountKey: accountID}

	select {
	case l.global <- struct{}{}:
		lease.heldGlobal = true
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if isWrite && l.cfg.AccountWriteSerialized && accountID != "" {
		acctMu := l.accountMutex(accountID)
		acquired := make(chan struct{})
		go func() {
			acctMu.Lock()
			close(acquired)
		}()

		select {
		case <-acquired:
			lease.heldAcct = true
		case <-ctx.Done():
			// The goroutine above may still acquire the mutex after we give
			// up waiting; to avoid leaking it locked forever, wait for it in
			// the background and unlock immediately once it lands.
			go func() {
				<-acquired
				acctMu.Unlock()
			}()
			lease.Release()
			return nil, ctx.Err()
		}
	}

	return lease, nil
}

func (l *Limiter) checkCooldown(user string, isWrite bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.nextRead
	cooldown := l.cfg.ReadCooldown
	if isWrite {
		m = l.nextWrite
		cooldown = l.cfg.WriteCooldown
	}

	now := time.Now()
	if next, ok := m[user]; ok && now.Before(next) {
		return &RateLimited{WaitSec: next.Sub(now).Seconds()}
	}
	m[user] = now.Add(cooldown)
	return nil
}

func (l *Limiter) accountMutex(accountID string) *sync.Mutex {
	l.accountMu.Lock()
	defer l.accountMu.Unlock()
	m, ok := l.accounts[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.accounts[accountID] = m
	}
	return m
}

// Release frees every resource this lease holds, in reverse acquisition
// order. Safe to call more than once; only the first call has effect.
func (lease *Lease) Release() {
	lease.mu.Lock()
	defer lease.mu.Unlock()
	if lease.released {
		return
	}
	lease.released = true

	if lease.heldAcct {
		lease.limiter.accountMutex(lease.accountKey).Unlock()
		lease.heldAcct = false
	}
	if lease.heldGlobal {
		<-lease.limiter.global
		lease.heldGlobal = false
	}
}

// InFlight returns the number of currently held global semaphore slots —
// globalConcurrency - available, exposed for metrics and tests verifying the
// semaphore-conservation invariant.
func (l *Limiter) InFlight() int {
	return len(l.global)
}
