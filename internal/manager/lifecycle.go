package manager

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/runtime"
)

// StartAccount brings up one account's runtime with classified retry. A
// concurrent second call for the same account queues behind the first via
// the per-account start lock.
func (m *Manager) StartAccount(ctx context.Context, accountID string) error {
	lk := m.startLockFor(accountID)
	lk.Lock()
	defer lk.Unlock()

	acc, err := m.GetAccount(accountID)
	if err != nil {
		return err
	}
	if acc.Code == "" {
		total := m.cfg.StartRetryMaxAttempts
		if total <= 0 {
			total = 1
		}
		reason := fmt.Sprintf("%s (重试1/%d)", normalizeStartError(errMissingLoginCode), total)
		m.setStatus(accountID, RuntimeFailed, reason)
		return &StartFailedPermanent{Reason: reason}
	}

	maxAttempts := m.cfg.StartRetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseDelay := m.cfg.StartRetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := m.cfg.StartRetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	lastAttempt := 0
attempts:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastAttempt = attempt
		if attempt == 1 {
			m.setStatus(accountID, RuntimeStarting, "")
		} else {
			m.setStatus(accountID, RuntimeRetrying, "")
		}

		rt := runtime.New(accountID, acc.Code, m.settingsFor(accountID), m.newGatewayDeps(accountID))

		m.mu.Lock()
		m.runtimes[accountID] = rt
		m.mu.Unlock()

		if err := rt.Start(ctx); err == nil {
			m.mu.Lock()
			if row := m.statusRows[accountID]; row != nil {
				row.RuntimeState = RuntimeRunning
				row.LastStartSuccessAt = time.Now()
				row.LastStartError = ""
				row.StartRetryCount = attempt - 1
			}
			m.saveRuntimeStatusLocked()
			m.mu.Unlock()
			m.appendLog(LogEntry{Tag: "runtime", Msg: "started", AccountID: accountID})
			return nil
		} else {
			rt.Stop()
			m.mu.Lock()
			delete(m.runtimes, accountID)
			m.mu.Unlock()

			retryable, normalized := classifyStartError(err)
			lastErr = fmt.Errorf("%s", normalized)
			m.logger.Warn("account start attempt failed",
				zap.String("account_id", accountID),
				zap.Int("attempt", attempt),
				zap.Bool("retryable", retryable),
				zap.String("reason", normalized))

			if !retryable {
				break
			}
			if attempt < maxAttempts {
				delay := backoffDelay(baseDelay, maxDelay, attempt)
				select {
				case <-ctx.Done():
					lastErr = ctx.Err()
					break attempts
				case <-time.After(delay):
				}
			}
		}
	}

	reason := fmt.Sprintf("%s (重试%d/%d)", lastErr, lastAttempt, maxAttempts)
	m.setStatus(accountID, RuntimeFailed, reason)
	m.appendLog(LogEntry{Tag: "runtime", Msg: reason, IsWarn: true, AccountID: accountID})
	return fmt.Errorf("manager: start failed: %s", reason)
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func (m *Manager) setStatus(accountID string, state RuntimeState, lastStartError string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.statusRows[accountID]
	if !ok {
		row = &StatusRow{AccountID: accountID}
		m.statusRows[accountID] = row
	}
	row.RuntimeState = state
	if state == RuntimeStarting || state == RuntimeRetrying {
		if row.LastStartAt.IsZero() || state == RuntimeStarting {
			row.LastStartAt = time.Now()
		}
		row.StartRetryCount++
	}
	if lastStartError != "" {
		row.LastStartError = lastStartError
	}
	m.saveRuntimeStatusLocked()
}
