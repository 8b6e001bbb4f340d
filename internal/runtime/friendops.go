package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/domain"
)

// autoFriendCycle runs every enabled friend interaction against every friend
// once per scheduler tick where the friend cycle is due and quiet hours do
// not apply.
func (r *Runtime) autoFriendCycle(ctx context.Context) {
	r.friendMu.Lock()
	defer r.friendMu.Unlock()

	gid := r.sessionState().GID
	friends, err := r.friend.List(ctx, gid)
	if err != nil {
		r.logger.Warn("friend list failed", zap.Error(err))
		return
	}

	r.friendStatsMu.Lock()
	r.friendStats.FriendCount = len(friends)
	r.friendStatsMu.Unlock()

	settings := r.currentSettings()
	kinds := r.enabledFriendOps(settings)
	if len(kinds) == 0 {
		return
	}

	for _, friend := range friends {
		for _, kind := range kinds {
			count, err := r.operateOnFriend(ctx, gid, friend, kind)
			if err != nil {
				r.logger.Warn("friend operation failed",
					zap.Int64("target_gid", friend.GID), zap.String("kind", string(kind)), zap.Error(err))
				continue
			}
			r.recordFriendOp(kind, count)
		}
	}
}

func (r *Runtime) enabledFriendOps(settings Settings) []domain.FriendOpKind {
	var kinds []domain.FriendOpKind
	if settings.Automation.FriendSteal {
		kinds = append(kinds, domain.FriendOpSteal)
	}
	if settings.Automation.FriendHelp {
		kinds = append(kinds, domain.FriendOpWater, domain.FriendOpWeed, domain.FriendOpBug)
	}
	if settings.Automation.FriendBad {
		kinds = append(kinds, domain.FriendOpBad)
	}
	return kinds
}

// operateOnFriend performs one interaction kind against one friend. Per the
// spec, an operation whose daily quota is already known to be exhausted
// returns {ok:true, count:0} without issuing any RPC at all — not even the
// CheckCanOperate probe.
func (r *Runtime) operateOnFriend(ctx context.Context, gid int64, friend domain.FriendSummary, kind domain.FriendOpKind) (int, error) {
	if r.quota.Exhausted(kind) {
		return 0, nil
	}

	allowance, err := r.friend.CheckCanOperate(ctx, gid, friend.GID, kind)
	if err != nil {
		return 0, err
	}
	if allowance <= 0 {
		r.quota.MarkExhausted(kind)
		return 0, nil
	}

	targets, err := r.friendTargetLands(ctx, gid, friend.GID, kind)
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}
	if kind == domain.FriendOpSteal && len(targets) > allowance {
		targets = targets[:allowance]
	}

	return r.friend.Operate(ctx, gid, friend.GID, kind, targets)
}

func (r *Runtime) friendTargetLands(ctx context.Context, gid, targetGID int64, kind domain.FriendOpKind) ([]int, error) {
	lands, err := r.friend.Lands(ctx, gid, targetGID)
	if err != nil {
		return nil, err
	}

	var targets []int
	for _, land := range lands {
		if land.Plant == nil {
			continue
		}
		switch kind {
		case domain.FriendOpSteal:
			if land.Plant.Stealable {
				targets = append(targets, land.ID)
			}
		case domain.FriendOpWater:
			if land.Plant.DryNum > 0 {
				targets = append(targets, land.ID)
			}
		case domain.FriendOpWeed:
			if len(land.Plant.WeedOwners) == 0 {
				targets = append(targets, land.ID)
			}
		case domain.FriendOpBug:
			if len(land.Plant.InsectOwners) == 0 {
				targets = append(targets, land.ID)
			}
		case domain.FriendOpBad:
			targets = append(targets, land.ID)
		}
	}
	return targets, nil
}

func (r *Runtime) recordFriendOp(kind domain.FriendOpKind, count int) {
	if count <= 0 {
		return
	}
	switch kind {
	case domain.FriendOpSteal:
		r.incOp("steal", int64(count))
		r.friendStatsMu.Lock()
		r.friendStats.StealCount += int64(count)
		r.friendStatsMu.Unlock()
	case domain.FriendOpWater:
		r.incOp("helpWater", int64(count))
		r.bumpHelpCount(count)
	case domain.FriendOpWeed:
		r.incOp("helpWeed", int64(count))
		r.bumpHelpCount(count)
	case domain.FriendOpBug:
		r.incOp("helpBug", int64(count))
		r.bumpHelpCount(count)
	}
}

func (r *Runtime) bumpHelpCount(count int) {
	r.friendStatsMu.Lock()
	r.friendStats.HelpCount += int64(count)
	r.friendStatsMu.Unlock()
}
