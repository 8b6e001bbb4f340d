package commandapi

import (
	"context"

	"github.com/farmrunner/engine/internal/manager"
)

func (f *Facade) handleService(ctx context.Context, args []string) ([]Reply, error) {
	if len(args) == 0 {
		return nil, &manager.InvalidArgument{Reason: "service requires a subcommand"}
	}
	switch args[0] {
	case "status":
		accounts := f.Manager.ListAccounts()
		return []Reply{textReply("accounts=%d", len(accounts))}, nil
	case "start":
		f.Manager.StartAll(ctx)
		return []Reply{textReply("service start requested")}, nil
	case "stop":
		f.Manager.StopAll()
		return []Reply{textReply("service stopped")}, nil
	case "restart":
		f.Manager.StopAll()
		f.Manager.StartAll(ctx)
		return []Reply{textReply("service restarted")}, nil
	default:
		return nil, &manager.InvalidArgument{Reason: "unknown service subcommand " + args[0]}
	}
}

func (f *Facade) handleAccount(ctx context.Context, user string, args []string) ([]Reply, error) {
	if len(args) == 0 {
		return nil, &manager.InvalidArgument{Reason: "account requires a subcommand"}
	}

	switch args[0] {
	case "view":
		accountID, ok := f.Store.AccountForUser(user)
		if !ok {
			return []Reply{textReply("未绑定账号")}, nil
		}
		acc, err := f.Manager.GetAccount(accountID)
		if err != nil {
			return nil, err
		}
		return []Reply{textReply("account=%s name=%s platform=%s", acc.ID, acc.DisplayName, acc.Platform)}, nil

	case "bind":
		return f.handleAccountBind(user, args[1:])

	case "bindscan":
		return []Reply{textReply("bindscan requires an external QR polling loop, not implemented in this core")}, nil

	case "cancelscan":
		return []Reply{textReply("scan cancelled")}, nil

	case "unbind":
		if err := f.Store.UnbindUser(user); err != nil {
			return nil, err
		}
		return []Reply{textReply("已解绑")}, nil

	case "start":
		accountID, ok := f.Store.AccountForUser(user)
		if !ok {
			return []Reply{textReply("未绑定账号")}, nil
		}
		if err := f.Manager.StartAccount(ctx, accountID); err != nil {
			return nil, err
		}
		return []Reply{textReply("账号已启动")}, nil

	case "stop":
		accountID, ok := f.Store.AccountForUser(user)
		if !ok {
			return []Reply{textReply("未绑定账号")}, nil
		}
		f.Manager.StopAccount(accountID)
		return []Reply{textReply("账号已停止")}, nil

	case "reconnect":
		accountID, ok := f.Store.AccountForUser(user)
		if !ok {
			return []Reply{textReply("未绑定账号")}, nil
		}
		if len(args) > 1 {
			acc, err := f.Manager.GetAccount(accountID)
			if err != nil {
				return nil, err
			}
			if _, err := f.Manager.UpsertAccount(acc.ID, acc.DisplayName, acc.Platform, args[1], acc.UIN, acc.QQ, acc.AvatarURL); err != nil {
				return nil, err
			}
		}
		if err := f.Manager.Reconnect(ctx, accountID); err != nil {
			return nil, err
		}
		return []Reply{textReply("重连成功")}, nil

	default:
		return nil, &manager.InvalidArgument{Reason: "unknown account subcommand " + args[0]}
	}
}

// handleAccountBind implements "account bind code <code> [name]": binds the
// acting user to a freshly upserted account, creating one if the user has
// none yet.
func (f *Facade) handleAccountBind(user string, args []string) ([]Reply, error) {
	if len(args) < 2 || args[0] != "code" {
		return nil, &manager.InvalidArgument{Reason: "usage: account bind code <code> [name]"}
	}
	code := args[1]
	if code == "" {
		return nil, &manager.InvalidArgument{Reason: "empty login code"}
	}
	name := ""
	if len(args) > 2 {
		name = args[2]
	}

	existingID, _ := f.Store.AccountForUser(user)
	acc, err := f.Manager.UpsertAccount(existingID, name, "android", code, "", "", "")
	if err != nil {
		return nil, err
	}
	if existingID == "" {
		if err := f.Store.BindAccount(user, acc.ID); err != nil {
			return nil, err
		}
	}
	return []Reply{textReply("绑定成功: %s", acc.ID)}, nil
}
