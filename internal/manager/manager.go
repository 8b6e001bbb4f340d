package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/gameconfig"
	"github.com/farmrunner/engine/internal/runtime"
)

// Manager is the process-wide registry of accounts, layered settings, and
// live runtimes. All mutable state is guarded by mu, matching the single
// state-mutex design the specification calls for.
type Manager struct {
	dir    string
	logger *zap.Logger
	cfg    Config

	gameConfig *gameconfig.Store

	mu              sync.Mutex
	accounts        map[string]*Account
	statusRows      map[string]*StatusRow
	rawSettings     map[string]json.RawMessage
	settingsRev     map[string]int64
	runtimes        map[string]*runtime.Runtime
	nextAccountSeq  int64
	persistedLogs   []LogEntry

	startMu sync.Mutex
	startLocks map[string]*sync.Mutex

	logMu       sync.Mutex
	pendingLogs int
	lastFlush   time.Time

	cron gocron.Scheduler
}

// Config bundles the subset of process configuration the manager consults
// directly (the rest flows through to constructed runtimes).
type Config struct {
	GatewayURL            string
	ClientVersion         string
	Platform              string
	AutoStartConcurrency  int
	StartRetryMaxAttempts int
	StartRetryBaseDelay   time.Duration
	StartRetryMaxDelay    time.Duration
	LogFlushBatchSize     int
	LogFlushIntervalSec   int
	LogPersistenceEnabled bool

	HeartbeatIntervalSec int
	RPCTimeout           time.Duration
}

// Open loads persisted state from dir (creating it if absent) and returns an
// idle Manager. Call StartAll to bring up every account's runtime.
func Open(dir string, cfg Config, gameConfig *gameconfig.Store, logger *zap.Logger) (*Manager, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	m := &Manager{
		dir:         dir,
		logger:      logger.Named("manager"),
		cfg:         cfg,
		gameConfig:  gameConfig,
		accounts:    make(map[string]*Account),
		statusRows:  make(map[string]*StatusRow),
		rawSettings: make(map[string]json.RawMessage),
		settingsRev: make(map[string]int64),
		runtimes:    make(map[string]*runtime.Runtime),
		startLocks:  make(map[string]*sync.Mutex),
		lastFlush:   time.Now(),
	}
	if err := m.loadAccounts(); err != nil {
		return nil, err
	}
	if err := m.loadSettings(); err != nil {
		return nil, err
	}
	if err := m.loadRuntimeStatus(); err != nil {
		return nil, err
	}
	if err := m.loadLogs(); err != nil {
		return nil, err
	}
	for id := range m.accounts {
		if _, ok := m.statusRows[id]; !ok {
			m.statusRows[id] = &StatusRow{AccountID: id, RuntimeState: RuntimeStopped}
		}
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("manager: create scheduler: %w", err)
	}
	if _, err := cron.NewJob(
		gocron.DurationJob(m.flushInterval()),
		gocron.NewTask(func() { m.flushLogs(false) }),
	); err != nil {
		return nil, fmt.Errorf("manager: schedule log flush: %w", err)
	}
	m.cron = cron
	m.cron.Start()

	return m, nil
}

func (m *Manager) startLockFor(accountID string) *sync.Mutex {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	lk, ok := m.startLocks[accountID]
	if !ok {
		lk = &sync.Mutex{}
		m.startLocks[accountID] = lk
	}
	return lk
}

// UpsertAccount creates or fully replaces an account record (code always
// replaced on re-bind), assigning a monotonically increasing id on create.
func (m *Manager) UpsertAccount(id, displayName, platform, code, uin, qq, avatarURL string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if id == "" {
		m.nextAccountSeq++
		id = fmt.Sprintf("acc-%d", m.nextAccountSeq)
	}
	acc, existed := m.accounts[id]
	if !existed {
		acc = &Account{ID: id, CreatedAt: now}
	}
	acc.DisplayName = displayName
	acc.Platform = platform
	acc.Code = code
	acc.UIN = uin
	acc.QQ = qq
	acc.AvatarURL = avatarURL
	acc.UpdatedAt = now
	m.accounts[id] = acc

	if _, ok := m.statusRows[id]; !ok {
		m.statusRows[id] = &StatusRow{AccountID: id, RuntimeState: RuntimeStopped}
	}

	if err := m.saveAccountsLocked(); err != nil {
		return nil, err
	}
	if err := m.saveRuntimeStatusLocked(); err != nil {
		return nil, err
	}
	return acc, nil
}

// DeleteAccount stops the runtime (if any), then removes the account record,
// its settings, and its status row.
func (m *Manager) DeleteAccount(accountID string) error {
	m.StopAccount(accountID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return &NotFound{AccountID: accountID}
	}
	delete(m.accounts, accountID)
	delete(m.statusRows, accountID)
	delete(m.rawSettings, accountID)
	delete(m.settingsRev, accountID)

	if err := m.saveAccountsLocked(); err != nil {
		return err
	}
	if err := m.saveRuntimeStatusLocked(); err != nil {
		return err
	}
	return m.saveSettingsLocked()
}

// GetAccount returns the account record, or NotFound.
func (m *Manager) GetAccount(accountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[accountID]
	if !ok {
		return nil, &NotFound{AccountID: accountID}
	}
	cp := *acc
	return &cp, nil
}

// ListAccounts returns every account record.
func (m *Manager) ListAccounts() []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// StartAll starts every account's runtime with bounded parallelism.
func (m *Manager) StartAll(ctx context.Context) {
	ids := func() []string {
		m.mu.Lock()
		defer m.mu.Unlock()
		out := make([]string, 0, len(m.accounts))
		for id := range m.accounts {
			out = append(out, id)
		}
		return out
	}()

	concurrency := m.cfg.AutoStartConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.StartAccount(ctx, id); err != nil {
				m.logger.Warn("account auto-start failed", zap.String("account_id", id), zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

// StopAll stops every active runtime in parallel, then force-flushes logs.
func (m *Manager) StopAll() {
	ids := func() []string {
		m.mu.Lock()
		defer m.mu.Unlock()
		out := make([]string, 0, len(m.runtimes))
		for id := range m.runtimes {
			out = append(out, id)
		}
		return out
	}()

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.StopAccount(id)
		}()
	}
	wg.Wait()
	m.flushLogs(true)
	if m.cron != nil {
		if err := m.cron.Shutdown(); err != nil {
			m.logger.Warn("scheduler shutdown error", zap.Error(err))
		}
	}
}

// StopAccount is idempotent: it always clears the registry entry and sets
// the status row to stopped, even if no runtime was present.
func (m *Manager) StopAccount(accountID string) {
	m.mu.Lock()
	rt, ok := m.runtimes[accountID]
	delete(m.runtimes, accountID)
	if row, exists := m.statusRows[accountID]; exists {
		row.RuntimeState = RuntimeStopped
	}
	m.saveRuntimeStatusLocked()
	m.mu.Unlock()

	if ok {
		rt.Stop()
		m.appendLog(LogEntry{Tag: "runtime", Msg: "stopped", AccountID: accountID})
	}
}

// Reconnect stops then restarts one account's runtime.
func (m *Manager) Reconnect(ctx context.Context, accountID string) error {
	m.StopAccount(accountID)
	return m.StartAccount(ctx, accountID)
}

// runtimeFor returns the live runtime for an account, or nil.
func (m *Manager) runtimeFor(accountID string) *runtime.Runtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runtimes[accountID]
}

func (m *Manager) newGatewayDeps(accountID string) runtime.Deps {
	return runtime.Deps{
		GatewayURL:           m.cfg.GatewayURL,
		ClientVersion:        m.cfg.ClientVersion,
		Platform:             m.cfg.Platform,
		Config:               m.gameConfig,
		Logger:               m.logger,
		OnKickout:            m.onKickout,
		HeartbeatIntervalSec: m.cfg.HeartbeatIntervalSec,
		RPCTimeout:           m.cfg.RPCTimeout,
	}
}

// onKickout implements the spec's destructive kickout policy: the account is
// deleted outright, not merely stopped.
func (m *Manager) onKickout(accountID string) {
	m.logger.Warn("account kicked out, deleting", zap.String("account_id", accountID))
	if err := m.DeleteAccount(accountID); err != nil {
		m.logger.Error("delete after kickout failed", zap.String("account_id", accountID), zap.Error(err))
	}
}
