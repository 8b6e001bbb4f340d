package manager

import "github.com/farmrunner/engine/internal/runtime"

// Snapshot is the stored-row status returned when an account has no live
// runtime to query directly.
type Snapshot struct {
	AccountID      string
	RuntimeState   RuntimeState
	LastStartError string
}

// GetStatus routes a status read: if the account has a live runtime, its
// live Status() is returned; otherwise a Snapshot built from the persisted
// status row, since status is the one read the spec requires to answer even
// without a runtime.
func (m *Manager) GetStatus(accountID string) (*runtime.Status, *Snapshot, error) {
	if _, err := m.GetAccount(accountID); err != nil {
		return nil, nil, err
	}
	if rt := m.runtimeFor(accountID); rt != nil {
		status := rt.Status()
		return &status, nil, nil
	}

	m.mu.Lock()
	row := m.statusRows[accountID]
	m.mu.Unlock()
	snap := &Snapshot{AccountID: accountID}
	if row != nil {
		snap.RuntimeState = row.RuntimeState
		snap.LastStartError = row.LastStartError
	}
	return nil, snap, nil
}

// requireRuntime routes a write (or non-status read) call: it requires a
// live runtime, failing with NotRunning (enriched with the last start
// error) when absent.
func (m *Manager) requireRuntime(accountID string) (*runtime.Runtime, error) {
	if _, err := m.GetAccount(accountID); err != nil {
		return nil, err
	}
	rt := m.runtimeFor(accountID)
	if rt != nil {
		return rt, nil
	}

	m.mu.Lock()
	row := m.statusRows[accountID]
	m.mu.Unlock()
	lastErr := ""
	if row != nil {
		lastErr = row.LastStartError
	}
	return nil, &NotRunning{AccountID: accountID, LastStartError: lastErr}
}

// RuntimeFor exposes requireRuntime to the command surface, which needs the
// live runtime to invoke domain operations (farm, friend, task, sell).
func (m *Manager) RuntimeFor(accountID string) (*runtime.Runtime, error) {
	return m.requireRuntime(accountID)
}
