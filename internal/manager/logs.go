package manager

import (
	"strings"
	"time"
)

// appendLog records one runtime log entry, precomputing the lowercase
// search text keyword filters match against, and flushes to disk once the
// batch/timer threshold is reached. Entries are always kept in memory for
// QueryLogs; only the disk flush is gated by LogPersistenceEnabled.
func (m *Manager) appendLog(e LogEntry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.TS = e.Time.UnixMilli()
	e.SearchText = strings.ToLower(e.Tag + " " + e.Msg)

	m.logMu.Lock()
	m.mu.Lock()
	m.persistedLogs = append(m.persistedLogs, e)
	m.mu.Unlock()
	m.pendingLogs++
	// The timer-based trigger is a scheduled job (see Manager.cron); this
	// only covers the batch-size trigger.
	due := m.pendingLogs >= m.flushBatchSize()
	m.logMu.Unlock()

	if due {
		m.flushLogs(false)
	}
}

func (m *Manager) flushBatchSize() int {
	if m.cfg.LogFlushBatchSize <= 0 {
		return 50
	}
	return m.cfg.LogFlushBatchSize
}

func (m *Manager) flushInterval() time.Duration {
	if m.cfg.LogFlushIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.cfg.LogFlushIntervalSec) * time.Second
}

// flushLogs persists pending log entries. force ignores the batch/timer
// gate, used on manager stop. A no-op when LogPersistenceEnabled is false:
// entries still accumulate in memory for QueryLogs, they just never hit
// disk.
func (m *Manager) flushLogs(force bool) {
	if !m.cfg.LogPersistenceEnabled {
		m.logMu.Lock()
		m.pendingLogs = 0
		m.logMu.Unlock()
		return
	}

	m.logMu.Lock()
	if !force && m.pendingLogs == 0 {
		m.logMu.Unlock()
		return
	}
	m.pendingLogs = 0
	m.lastFlush = time.Now()
	m.logMu.Unlock()

	m.mu.Lock()
	err := m.saveLogsLocked()
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("flush runtime logs failed")
	}
}

// QueryLogs returns up to limit of the most recent entries, filtered by
// module/event (matched against meta), keyword (matched against the
// precomputed search text), and isWarn, when specified.
func (m *Manager) QueryLogs(accountID string, limit int, module, event, keyword string, isWarn *bool) []LogEntry {
	m.mu.Lock()
	all := make([]LogEntry, len(m.persistedLogs))
	copy(all, m.persistedLogs)
	m.mu.Unlock()

	var out []LogEntry
	for i := len(all) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := all[i]
		if accountID != "" && e.AccountID != accountID {
			continue
		}
		if isWarn != nil && e.IsWarn != *isWarn {
			continue
		}
		if module != "" && e.Meta["module"] != module {
			continue
		}
		if event != "" && e.Meta["event"] != event {
			continue
		}
		if keyword != "" && !strings.Contains(e.SearchText, strings.ToLower(keyword)) {
			continue
		}
		out = append(out, e)
	}
	return out
}
