package runtime

import (
	"testing"

	"github.com/farmrunner/engine/internal/domain"
)

func TestDailyQuotaTableExhaustedOnlyAfterSeen(t *testing.T) {
	q := newDailyQuotaTable()

	if q.Exhausted(domain.FriendOpSteal) {
		t.Fatal("a kind never observed must not be considered exhausted")
	}

	q.Update(domain.OperationLimits{Steal: 0, Water: 5})
	if !q.Exhausted(domain.FriendOpSteal) {
		t.Error("steal should be exhausted once observed at 0")
	}
	if q.Exhausted(domain.FriendOpWater) {
		t.Error("water has remaining allowance, should not be exhausted")
	}
	if got := q.Remaining(domain.FriendOpWater); got != 5 {
		t.Errorf("Remaining(water) = %d, want 5", got)
	}
}

func TestDailyQuotaTableMarkExhaustedDoesNotDisturbOtherKinds(t *testing.T) {
	q := newDailyQuotaTable()
	q.Update(domain.OperationLimits{Steal: 3, Water: 3, Weed: 3, Bug: 3, Bad: 3})

	q.MarkExhausted(domain.FriendOpWeed)

	if !q.Exhausted(domain.FriendOpWeed) {
		t.Error("weed should be exhausted after MarkExhausted")
	}
	if q.Exhausted(domain.FriendOpSteal) {
		t.Error("marking weed exhausted must not affect steal")
	}
	if got := q.Remaining(domain.FriendOpSteal); got != 3 {
		t.Errorf("Remaining(steal) = %d, want 3 (untouched)", got)
	}
}

func TestDailyQuotaTableRolloverResetsOnDateChange(t *testing.T) {
	q := newDailyQuotaTable()
	q.Update(domain.OperationLimits{Steal: 0})
	if !q.Exhausted(domain.FriendOpSteal) {
		t.Fatal("expected steal to be exhausted before rollover")
	}

	// Simulate a local-date rollover directly, since today() is driven by
	// the real clock and cannot be faked from the test.
	q.mu.Lock()
	q.day = "2000-01-01"
	q.mu.Unlock()

	if q.Exhausted(domain.FriendOpSteal) {
		t.Error("steal should no longer be exhausted after a day rollover clears the seen set")
	}
}
