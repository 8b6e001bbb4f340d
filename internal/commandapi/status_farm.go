package commandapi

import (
	"context"
	"strconv"

	"github.com/farmrunner/engine/internal/manager"
)

func (f *Facade) handleStatus(accountID string) ([]Reply, error) {
	if accountID == "" {
		return []Reply{textReply("未绑定账号")}, nil
	}
	status, snap, err := f.Manager.GetStatus(accountID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return []Reply{textReply("runtimeState=%s lastError=%s", snap.RuntimeState, snap.LastStartError)}, nil
	}
	return []Reply{textReply(
		"connected=%v level=%d gold=%d(+%d) exp=%d(+%d) coupon=%d lands=%d",
		status.Connected, status.Level, status.Gold, status.GoldGainedThisSession,
		status.Exp, status.ExpGainedThisSession, status.Coupon, status.LandCount,
	)}, nil
}

func (f *Facade) handleFarm(ctx context.Context, accountID string, args []string) ([]Reply, error) {
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	if len(args) == 0 {
		return nil, &manager.InvalidArgument{Reason: "farm requires a subcommand"}
	}

	switch args[0] {
	case "view":
		rt, err := f.Manager.RuntimeFor(accountID)
		if err != nil {
			return nil, err
		}
		status := rt.Status()
		return []Reply{textReply("lands=%d", status.LandCount)}, nil

	case "operate":
		if len(args) < 2 {
			return nil, &manager.InvalidArgument{Reason: "usage: farm operate all|harvest|clear|plant|upgrade"}
		}
		rt, err := f.Manager.RuntimeFor(accountID)
		if err != nil {
			return nil, err
		}
		mode := args[1]
		switch mode {
		case "all", "harvest", "clear", "plant", "upgrade":
			if err := rt.Operate(ctx, mode); err != nil {
				return nil, err
			}
			return []Reply{textReply("执行完成: %s", mode)}, nil
		default:
			return nil, &manager.InvalidArgument{Reason: "unknown farm mode " + mode}
		}

	default:
		return nil, &manager.InvalidArgument{Reason: "unknown farm subcommand " + args[0]}
	}
}

func (f *Facade) handleFriend(ctx context.Context, accountID string, args []string) ([]Reply, error) {
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	if len(args) == 0 {
		return nil, &manager.InvalidArgument{Reason: "friend requires a subcommand"}
	}
	rt, err := f.Manager.RuntimeFor(accountID)
	if err != nil {
		return nil, err
	}

	switch args[0] {
	case "list":
		friends, err := rt.FriendList(ctx)
		if err != nil {
			return nil, err
		}
		return []Reply{textReply("friends=%d", len(friends))}, nil

	case "lands":
		if len(args) < 2 {
			return nil, &manager.InvalidArgument{Reason: "usage: friend lands <gid>"}
		}
		gid, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, &manager.InvalidArgument{Reason: "bad gid " + args[1]}
		}
		lands, err := rt.FriendLands(ctx, gid)
		if err != nil {
			return nil, err
		}
		return []Reply{textReply("lands=%d", len(lands))}, nil

	case "op":
		if len(args) < 3 {
			return nil, &manager.InvalidArgument{Reason: "usage: friend op <gid> steal|water|weed|bug|bad"}
		}
		gid, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, &manager.InvalidArgument{Reason: "bad gid " + args[1]}
		}
		count, err := rt.FriendOperate(ctx, gid, args[2])
		if err != nil {
			return nil, err
		}
		return []Reply{textReply("完成次数=%d", count)}, nil

	default:
		return nil, &manager.InvalidArgument{Reason: "unknown friend subcommand " + args[0]}
	}
}
