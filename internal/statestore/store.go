// Package statestore implements the C7 state store: bijective user↔account
// bindings, user/group allow-lists, and the render-theme preference, all
// JSON-backed and persisted atomically via temp-file + rename.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AlreadyBound is returned when bind_account would violate bijectivity.
type AlreadyBound struct {
	AccountID string
	OwnerUser string
}

func (e *AlreadyBound) Error() string {
	return fmt.Sprintf("statestore: account %s is already bound to user %s", e.AccountID, e.OwnerUser)
}

type binding struct {
	AccountID string    `json:"account_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// bindingsFile is the on-disk shape of bindings_v2.json. AccountOwners is
// always present in files this store writes; Owners-only files (the legacy
// shape) are normalized on load.
type bindingsFile struct {
	Owners        map[string]binding `json:"owners"`
	AccountOwners map[string]string  `json:"accountOwners,omitempty"`
}

type whitelistFile struct {
	Users  []string `json:"users"`
	Groups []string `json:"groups"`
}

// Store holds the three JSON-backed collections, guarded by a single mutex —
// the spec describes these as process-wide singletons guarded by the
// manager's state lock; here that lock lives with the store itself.
type Store struct {
	mu sync.Mutex
	dir string

	owners        map[string]binding
	accountOwners map[string]string

	staticUsers  []string
	staticGroups []string
	users        []string
	groups       []string

	theme string
}

// Open loads (or initializes) the three JSON files under dir. staticUsers
// and staticGroups are the statically configured allow-list entries that
// whitelist queries always union with the persisted ones.
func Open(dir string, staticUsers, staticGroups []string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("statestore: create dir: %w", err)
	}

	s := &Store{
		dir:           dir,
		owners:        make(map[string]binding),
		accountOwners: make(map[string]string),
		staticUsers:   staticUsers,
		staticGroups:  staticGroups,
		theme:         "light",
	}

	if err := s.loadBindings(); err != nil {
		return nil, err
	}
	if err := s.loadWhitelist(); err != nil {
		return nil, err
	}
	if err := s.loadTheme(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) bindingsPath() string  { return filepath.Join(s.dir, "bindings_v2.json") }
func (s *Store) whitelistPath() string { return filepath.Join(s.dir, "whitelist_v2.json") }
func (s *Store) themePath() string     { return filepath.Join(s.dir, "theme_v2.json") }

func (s *Store) loadBindings() error {
	var file bindingsFile
	ok, err := readJSONIfExists(s.bindingsPath(), &file)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.owners = file.Owners
	if s.owners == nil {
		s.owners = make(map[string]binding)
	}

	if file.AccountOwners != nil {
		s.accountOwners = file.AccountOwners
		return nil
	}

	// Legacy shape: only owners is present. Derive accountOwners, and when
	// two users claim the same account, the one with the higher UpdatedAt
	// wins; the loser's owners entry is dropped so the store is
	// self-consistent after normalization.
	s.accountOwners = make(map[string]string)
	winner := make(map[string]string) // accountID -> winning user
	winnerTime := make(map[string]time.Time)

	for user, b := range s.owners {
		if cur, ok := winnerTime[b.AccountID]; !ok || b.UpdatedAt.After(cur) {
			winner[b.AccountID] = user
			winnerTime[b.AccountID] = b.UpdatedAt
		}
	}
	for accountID, user := range winner {
		s.accountOwners[accountID] = user
	}
	for user, b := range s.owners {
		if winner[b.AccountID] != user {
			delete(s.owners, user)
		}
	}

	return s.saveBindingsLocked()
}

func (s *Store) loadWhitelist() error {
	var file whitelistFile
	ok, err := readJSONIfExists(s.whitelistPath(), &file)
	if err != nil {
		return err
	}
	if ok {
		s.users = file.Users
		s.groups = file.Groups
	}
	return nil
}

func (s *Store) loadTheme() error {
	var file struct {
		Theme string `json:"theme"`
	}
	ok, err := readJSONIfExists(s.themePath(), &file)
	if err != nil {
		return err
	}
	if ok && file.Theme != "" {
		s.theme = file.Theme
	}
	return nil
}

// BindAccount enforces bijectivity: if accountID is already owned by a
// different user, fails with *AlreadyBound. If user had a prior binding, the
// old accountOwners entry is removed atomically with the new insertion.
func (s *Store) BindAccount(user, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.accountOwners[accountID]; ok && owner != user {
		return &AlreadyBound{AccountID: accountID, OwnerUser: owner}
	}

	if prev, ok := s.owners[user]; ok && prev.AccountID != accountID {
		delete(s.accountOwners, prev.AccountID)
	}

	s.owners[user] = binding{AccountID: accountID, UpdatedAt: nowFunc()}
	s.accountOwners[accountID] = user

	return s.saveBindingsLocked()
}

// UnbindUser removes user's binding, if any. Idempotent.
func (s *Store) UnbindUser(user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.owners[user]
	if !ok {
		return nil
	}
	delete(s.owners, user)
	if s.accountOwners[b.AccountID] == user {
		delete(s.accountOwners, b.AccountID)
	}
	return s.saveBindingsLocked()
}

// AccountForUser returns the account bound to user, if any.
func (s *Store) AccountForUser(user string) (accountID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.owners[user]
	if !ok {
		return "", false
	}
	return b.AccountID, true
}

// UserForAccount returns the user bound to accountID, if any.
func (s *Store) UserForAccount(accountID string) (user string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.accountOwners[accountID]
	return u, ok
}

func (s *Store) saveBindingsLocked() error {
	file := bindingsFile{Owners: s.owners, AccountOwners: s.accountOwners}
	return writeJSONAtomic(s.bindingsPath(), file)
}

// AddWhitelistUser adds a user id to the persisted whitelist, deduped and
// trimmed.
func (s *Store) AddWhitelistUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = appendNormalized(s.users, id)
	return s.saveWhitelistLocked()
}

// RemoveWhitelistUser removes a persisted (not static) whitelist entry.
func (s *Store) RemoveWhitelistUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = removeNormalized(s.users, id)
	return s.saveWhitelistLocked()
}

// AddWhitelistGroup adds a group id to the persisted whitelist.
func (s *Store) AddWhitelistGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = appendNormalized(s.groups, id)
	return s.saveWhitelistLocked()
}

// RemoveWhitelistGroup removes a persisted group entry.
func (s *Store) RemoveWhitelistGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = removeNormalized(s.groups, id)
	return s.saveWhitelistLocked()
}

func (s *Store) saveWhitelistLocked() error {
	return writeJSONAtomic(s.whitelistPath(), whitelistFile{Users: s.users, Groups: s.groups})
}

// WhitelistedUsers returns the union of statically configured and persisted
// user ids, deduplicated, preserving first-seen order (static first).
func (s *Store) WhitelistedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unionPreserveOrder(s.staticUsers, s.users)
}

// WhitelistedGroups returns the union of statically configured and
// persisted group ids, same ordering rule as WhitelistedUsers.
func (s *Store) WhitelistedGroups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unionPreserveOrder(s.staticGroups, s.groups)
}

// Theme returns the current render-theme preference.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme updates the render-theme preference.
func (s *Store) SetTheme(theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	return writeJSONAtomic(s.themePath(), struct {
		Theme string `json:"theme"`
	}{Theme: theme})
}

// nowFunc exists so tests can deterministically control ordering of
// competing bindings without sleeping.
var nowFunc = time.Now

func appendNormalized(list []string, id string) []string {
	id = strings.TrimSpace(id)
	if id == "" {
		return list
	}
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func removeNormalized(list []string, id string) []string {
	id = strings.TrimSpace(id)
	out := list[:0:0]
	for _, existing := range list {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func unionPreserveOrder(first, second []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range first {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range second {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func readJSONIfExists(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("statestore: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("statestore: corrupt %s: %w", path, err)
	}
	return true, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("statestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("statestore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("statestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("statestore: rename temp file: %w", err)
	}
	ok = true
	return nil
}
