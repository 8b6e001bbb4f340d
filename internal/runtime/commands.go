package runtime

import (
	"context"
	"fmt"

	"github.com/farmrunner/engine/internal/domain"
)

// Operate runs the farm state machine for one mode synchronously, for
// direct command invocation outside the scheduler's periodic cycle. mode is
// one of "all", "harvest", "clear", "plant", "upgrade".
func (r *Runtime) Operate(ctx context.Context, mode string) error {
	if !r.sessionState().LoginReady {
		return fmt.Errorf("runtime: account not logged in")
	}
	switch farmMode(mode) {
	case farmModeAll, farmModeHarvest, farmModeClear, farmModePlant, farmModeUpgrade:
	default:
		return fmt.Errorf("runtime: unknown farm mode %q", mode)
	}
	r.doFarmOperation(ctx, farmMode(mode))
	return nil
}

// FriendList lists the account's friends.
func (r *Runtime) FriendList(ctx context.Context) ([]domain.FriendSummary, error) {
	return r.friend.List(ctx, r.sessionState().GID)
}

// FriendLands lists one friend's lands.
func (r *Runtime) FriendLands(ctx context.Context, targetGID int64) ([]domain.Land, error) {
	return r.friend.Lands(ctx, r.sessionState().GID, targetGID)
}

// FriendOperate runs one interaction kind against one friend on demand,
// reusing the same quota-aware path the automatic friend cycle uses.
func (r *Runtime) FriendOperate(ctx context.Context, targetGID int64, kind string) (int, error) {
	r.friendMu.Lock()
	defer r.friendMu.Unlock()

	gid := r.sessionState().GID
	friends, err := r.friend.List(ctx, gid)
	if err != nil {
		return 0, err
	}
	var target domain.FriendSummary
	found := false
	for _, fr := range friends {
		if fr.GID == targetGID {
			target = fr
			found = true
			break
		}
	}
	if !found {
		target = domain.FriendSummary{GID: targetGID}
	}

	count, err := r.operateOnFriend(ctx, gid, target, domain.FriendOpKind(kind))
	if err != nil {
		return 0, err
	}
	r.recordFriendOp(domain.FriendOpKind(kind), count)
	return count, nil
}

// ClaimCompletedTasks claims every completed task on demand.
func (r *Runtime) ClaimCompletedTasks(ctx context.Context) {
	r.claimCompletedTasks(ctx)
}

// Sell forces one warehouse sell-all cycle (used by the super-admin debug
// command).
func (r *Runtime) Sell(ctx context.Context) error {
	r.autoSell(ctx, r.sessionState().GID)
	return nil
}
