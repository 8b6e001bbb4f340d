package manager

import (
	"testing"

	"go.uber.org/zap"
)

func TestQueryLogsFiltersAndOrdersMostRecentFirst(t *testing.T) {
	m := openTestManager(t)

	m.appendLog(LogEntry{Tag: "farm", Msg: "harvested", AccountID: "acc-1", Meta: map[string]any{"module": "farm", "event": "harvest"}})
	m.appendLog(LogEntry{Tag: "friend", Msg: "stole gold", AccountID: "acc-1", IsWarn: true, Meta: map[string]any{"module": "friend", "event": "steal"}})
	m.appendLog(LogEntry{Tag: "farm", Msg: "planted wheat", AccountID: "acc-2", Meta: map[string]any{"module": "farm", "event": "plant"}})

	all := m.QueryLogs("acc-1", 10, "", "", "", nil)
	if len(all) != 2 {
		t.Fatalf("got %d entries for acc-1, want 2", len(all))
	}
	if all[0].Msg != "stole gold" {
		t.Errorf("most recent entry = %q, want %q (most-recent-first order)", all[0].Msg, "stole gold")
	}

	warnOnly := true
	warn := m.QueryLogs("", 10, "", "", "", &warnOnly)
	if len(warn) != 1 || warn[0].Msg != "stole gold" {
		t.Errorf("isWarn filter returned %+v, want only the friend-steal entry", warn)
	}

	byModule := m.QueryLogs("", 10, "farm", "", "", nil)
	if len(byModule) != 2 {
		t.Errorf("module=farm filter returned %d entries, want 2", len(byModule))
	}

	byKeyword := m.QueryLogs("", 10, "", "", "wheat", nil)
	if len(byKeyword) != 1 || byKeyword[0].Msg != "planted wheat" {
		t.Errorf("keyword filter returned %+v, want only the planted-wheat entry", byKeyword)
	}

	limited := m.QueryLogs("", 1, "", "", "", nil)
	if len(limited) != 1 {
		t.Errorf("limit=1 returned %d entries, want 1", len(limited))
	}
}

func TestAppendLogFlushesAtBatchSize(t *testing.T) {
	cfg := testConfig()
	cfg.LogFlushBatchSize = 2
	m, err := Open(t.TempDir(), cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.StopAll()

	m.appendLog(LogEntry{Tag: "a", Msg: "1"})
	m.logMu.Lock()
	pending := m.pendingLogs
	m.logMu.Unlock()
	if pending != 1 {
		t.Fatalf("pendingLogs after 1 entry = %d, want 1", pending)
	}

	m.appendLog(LogEntry{Tag: "a", Msg: "2"})
	m.logMu.Lock()
	pending = m.pendingLogs
	m.logMu.Unlock()
	if pending != 0 {
		t.Errorf("pendingLogs after hitting batch size = %d, want 0 (flushed)", pending)
	}
}

// TestLogPersistenceDisabledKeepsQueryableButSkipsDisk verifies
// LogPersistenceEnabled=false still serves QueryLogs from memory but never
// survives a reopen, since flushLogs becomes a no-op against disk.
func TestLogPersistenceDisabledKeepsQueryableButSkipsDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.LogPersistenceEnabled = false

	m1, err := Open(dir, cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	acc, err := m1.UpsertAccount("", "alice", "android", "code-1", "", "", "")
	if err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	m1.appendLog(LogEntry{Tag: "test", Msg: "hello", AccountID: acc.ID})

	if got := m1.QueryLogs(acc.ID, 10, "", "", "", nil); len(got) != 1 {
		t.Fatalf("QueryLogs before flush = %d entries, want 1 (in-memory regardless of persistence setting)", len(got))
	}

	m1.flushLogs(true)
	m1.StopAll()

	m2, err := Open(dir, cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer m2.StopAll()

	if got := m2.QueryLogs(acc.ID, 10, "", "", "", nil); len(got) != 0 {
		t.Errorf("logs survived reopen with persistence disabled: %+v, want none", got)
	}
}
