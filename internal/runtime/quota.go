package runtime

import (
	"sync"
	"time"

	"github.com/farmrunner/engine/internal/domain"
)

// dailyQuotaTable mirrors the gateway's per-day operation limits locally so
// friend operations can be pre-gated without an RPC once a kind is known to
// be exhausted. Its limits are replaced from every Lands-inspection reply;
// a CheckCanOperate probe that reports zero allowance marks that kind
// exhausted. It empties itself on the first access after a local-date
// rollover.
type dailyQuotaTable struct {
	mu     sync.Mutex
	day    string
	limits domain.OperationLimits
	seen   map[domain.FriendOpKind]bool
}

func newDailyQuotaTable() *dailyQuotaTable {
	return &dailyQuotaTable{day: today(), seen: make(map[domain.FriendOpKind]bool)}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// Update replaces the cached limits with freshly observed server-reported
// ones, marking every kind as seen.
func (t *dailyQuotaTable) Update(limits domain.OperationLimits) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	t.limits = limits
	for _, kind := range allFriendOpKinds {
		t.seen[kind] = true
	}
}

// Remaining returns the cached allowance for kind, after rolling over the
// table if the local date has advanced since the last access.
func (t *dailyQuotaTable) Remaining(kind domain.FriendOpKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.valueLocked(kind)
}

// Exhausted reports whether kind's locally cached allowance is known to be
// zero. A kind never observed yet is not considered exhausted — the caller
// still probes the server the first time.
func (t *dailyQuotaTable) Exhausted(kind domain.FriendOpKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.seen[kind] && t.valueLocked(kind) <= 0
}

// MarkExhausted records that kind's allowance is known to be zero for the
// rest of the local day, without disturbing the other kinds' cached values.
func (t *dailyQuotaTable) MarkExhausted(kind domain.FriendOpKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	t.seen[kind] = true
	switch kind {
	case domain.FriendOpSteal:
		t.limits.Steal = 0
	case domain.FriendOpWater:
		t.limits.Water = 0
	case domain.FriendOpWeed:
		t.limits.Weed = 0
	case domain.FriendOpBug:
		t.limits.Bug = 0
	case domain.FriendOpBad:
		t.limits.Bad = 0
	}
}

func (t *dailyQuotaTable) valueLocked(kind domain.FriendOpKind) int {
	switch kind {
	case domain.FriendOpSteal:
		return t.limits.Steal
	case domain.FriendOpWater:
		return t.limits.Water
	case domain.FriendOpWeed:
		return t.limits.Weed
	case domain.FriendOpBug:
		return t.limits.Bug
	case domain.FriendOpBad:
		return t.limits.Bad
	default:
		return 0
	}
}

func (t *dailyQuotaTable) rolloverLocked() {
	d := today()
	if d != t.day {
		t.day = d
		t.limits = domain.OperationLimits{}
		t.seen = make(map[domain.FriendOpKind]bool)
	}
}

var allFriendOpKinds = []domain.FriendOpKind{
	domain.FriendOpSteal, domain.FriendOpWater, domain.FriendOpWeed, domain.FriendOpBug, domain.FriendOpBad,
}
