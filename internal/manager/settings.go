package manager

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/runtime"
)

// settingsFor resolves the fully layered settings for one account: global
// defaults, overridden by any persisted per-account document.
func (m *Manager) settingsFor(accountID string) runtime.Settings {
	s := runtime.DefaultSettings()

	m.mu.Lock()
	raw, ok := m.rawSettings[accountID]
	m.mu.Unlock()
	if !ok || len(raw) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		m.logger.Warn("discarding unreadable settings document, using defaults", zap.String("account_id", accountID))
		return runtime.DefaultSettings()
	}
	return s
}

// SettingsRevision returns the current revision counter for an account's
// settings, or 0 if never saved.
func (m *Manager) SettingsRevision(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settingsRev[accountID]
}

// SaveSettings merges patch into the account's current settings document and
// hot-reloads the live runtime if one is active. patch keys follow the
// recognized field set: "strategy", "preferredSeedId" (alias "seedId"), and
// "renderTheme" replace scalars; "automation", "intervals", and
// "friendQuietHours" are shallow-merged one level deep, leaving unmentioned
// sub-fields untouched.
func (m *Manager) SaveSettings(accountID string, patch map[string]any) (runtime.Settings, error) {
	m.mu.Lock()
	_, ok := m.accounts[accountID]
	m.mu.Unlock()
	if !ok {
		return runtime.Settings{}, &NotFound{AccountID: accountID}
	}
	current := m.settingsFor(accountID)

	merged, err := mergeSettings(current, patch)
	if err != nil {
		return runtime.Settings{}, &InvalidArgument{Reason: err.Error()}
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return runtime.Settings{}, fmt.Errorf("manager: marshal settings: %w", err)
	}

	m.mu.Lock()
	m.rawSettings[accountID] = raw
	m.settingsRev[accountID]++
	err = m.saveSettingsLocked()
	m.mu.Unlock()
	if err != nil {
		return runtime.Settings{}, err
	}

	if rt := m.runtimeFor(accountID); rt != nil {
		rt.ApplySettings(merged)
	}
	return merged, nil
}

// mergeSettings applies patch onto current following the documented
// per-field merge rule, working through a JSON round-trip so the patch can
// be expressed as plain decoded JSON (map[string]any, as produced by a
// command-surface decoder).
func mergeSettings(current runtime.Settings, patch map[string]any) (runtime.Settings, error) {
	currentMap, err := toMap(current)
	if err != nil {
		return current, err
	}

	if v, ok := patch["strategy"]; ok {
		currentMap["strategy"] = v
	}
	if v, ok := patch["preferredSeedId"]; ok {
		currentMap["preferredSeedId"] = v
	} else if v, ok := patch["seedId"]; ok {
		currentMap["preferredSeedId"] = v
	}
	if v, ok := patch["renderTheme"]; ok {
		currentMap["renderTheme"] = v
	}
	for _, key := range []string{"automation", "intervals", "friendQuietHours"} {
		patchSub, ok := patch[key].(map[string]any)
		if !ok {
			continue
		}
		curSub, _ := currentMap[key].(map[string]any)
		if curSub == nil {
			curSub = make(map[string]any)
		}
		for k, v := range patchSub {
			curSub[k] = v
		}
		currentMap[key] = curSub
	}

	merged, err := fromMap(currentMap)
	if err != nil {
		return current, err
	}
	return merged, nil
}

func toMap(s runtime.Settings) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap(m map[string]any) (runtime.Settings, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return runtime.Settings{}, err
	}
	var s runtime.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return runtime.Settings{}, err
	}
	return s, nil
}
