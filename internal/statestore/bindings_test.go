package statestore

import "testing"

func TestBindAccountRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.BindAccount("u1", "acc-1"); err != nil {
		t.Fatalf("BindAccount: %v", err)
	}

	accountID, ok := s.AccountForUser("u1")
	if !ok || accountID != "acc-1" {
		t.Fatalf("AccountForUser(u1) = (%q,%v), want (acc-1,true)", accountID, ok)
	}
	user, ok := s.UserForAccount("acc-1")
	if !ok || user != "u1" {
		t.Fatalf("UserForAccount(acc-1) = (%q,%v), want (u1,true)", user, ok)
	}
}

func TestBindAccountRejectsDoubleBindingToDifferentUsers(t *testing.T) {
	s, err := Open(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.BindAccount("u1", "acc-1"); err != nil {
		t.Fatalf("BindAccount: %v", err)
	}

	err = s.BindAccount("u2", "acc-1")
	if err == nil {
		t.Fatal("expected AlreadyBound, binding the same account to a second user must fail")
	}
	ab, ok := err.(*AlreadyBound)
	if !ok {
		t.Fatalf("err = %T, want *AlreadyBound", err)
	}
	if ab.OwnerUser != "u1" {
		t.Errorf("AlreadyBound.OwnerUser = %q, want u1", ab.OwnerUser)
	}

	// u2 must still be unbound.
	if _, ok := s.AccountForUser("u2"); ok {
		t.Error("u2 should not have acquired a binding from the failed attempt")
	}
}

func TestBindAccountRebindingSameUserMovesTheBinding(t *testing.T) {
	s, err := Open(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.BindAccount("u1", "acc-1"); err != nil {
		t.Fatalf("BindAccount: %v", err)
	}
	if err := s.BindAccount("u1", "acc-2"); err != nil {
		t.Fatalf("rebind BindAccount: %v", err)
	}

	accountID, ok := s.AccountForUser("u1")
	if !ok || accountID != "acc-2" {
		t.Fatalf("AccountForUser(u1) after rebind = (%q,%v), want (acc-2,true)", accountID, ok)
	}
	// The old account must no longer point back to u1, freeing acc-1 for
	// some other user to bind.
	if _, ok := s.UserForAccount("acc-1"); ok {
		t.Error("acc-1 should have been released when u1 rebound to acc-2")
	}
	if err := s.BindAccount("u2", "acc-1"); err != nil {
		t.Errorf("acc-1 should be bindable again after being released: %v", err)
	}
}

func TestUnbindUserIsIdempotent(t *testing.T) {
	s, err := Open(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.UnbindUser("never-bound"); err != nil {
		t.Fatalf("UnbindUser on an unbound user should be a no-op, got: %v", err)
	}

	if err := s.BindAccount("u1", "acc-1"); err != nil {
		t.Fatalf("BindAccount: %v", err)
	}
	if err := s.UnbindUser("u1"); err != nil {
		t.Fatalf("UnbindUser: %v", err)
	}
	if _, ok := s.AccountForUser("u1"); ok {
		t.Error("u1 should have no binding after UnbindUser")
	}
	if _, ok := s.UserForAccount("acc-1"); ok {
		t.Error("acc-1 should have no owner after its sole owner unbinds")
	}

	// Calling again must not error or disturb anything further.
	if err := s.UnbindUser("u1"); err != nil {
		t.Errorf("second UnbindUser should still be a no-op, got: %v", err)
	}
}

func TestBindingsPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.BindAccount("u1", "acc-1"); err != nil {
		t.Fatalf("BindAccount: %v", err)
	}
	if err := s1.AddWhitelistUser("w1"); err != nil {
		t.Fatalf("AddWhitelistUser: %v", err)
	}
	if err := s1.SetTheme("dark"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}

	s2, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if accountID, ok := s2.AccountForUser("u1"); !ok || accountID != "acc-1" {
		t.Errorf("binding did not survive reopen: (%q,%v)", accountID, ok)
	}
	found := false
	for _, u := range s2.WhitelistedUsers() {
		if u == "w1" {
			found = true
		}
	}
	if !found {
		t.Error("whitelist entry did not survive reopen")
	}
	if s2.Theme() != "dark" {
		t.Errorf("theme = %q, want dark to survive reopen", s2.Theme())
	}
}
