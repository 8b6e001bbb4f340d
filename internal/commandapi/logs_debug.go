package commandapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/farmrunner/engine/internal/manager"
)

func (f *Facade) handleLogs(args []string) ([]Reply, error) {
	limit, module, event, keyword, isWarn := parseLogFilters(args)
	entries := f.Manager.QueryLogs("", limit, module, event, keyword, isWarn)
	return []Reply{textReply("logs=%d", len(entries))}, nil
}

func (f *Facade) handleAccountLogs(accountID string, args []string) ([]Reply, error) {
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	limit := 50
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	entries := f.Manager.QueryLogs(accountID, limit, "", "", "", nil)
	return []Reply{textReply("account-logs=%d", len(entries))}, nil
}

// parseLogFilters parses "[limit] [module=][event=][keyword=][isWarn=]".
func parseLogFilters(args []string) (limit int, module, event, keyword string, isWarn *bool) {
	limit = 50
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "module="):
			module = strings.TrimPrefix(arg, "module=")
		case strings.HasPrefix(arg, "event="):
			event = strings.TrimPrefix(arg, "event=")
		case strings.HasPrefix(arg, "keyword="):
			keyword = strings.TrimPrefix(arg, "keyword=")
		case strings.HasPrefix(arg, "isWarn="):
			v := strings.TrimPrefix(arg, "isWarn=") == "true"
			isWarn = &v
		default:
			if n, err := strconv.Atoi(arg); err == nil {
				limit = n
			}
		}
	}
	return
}

func (f *Facade) handleDebug(ctx context.Context, cmd Command, accountID string, args []string) ([]Reply, error) {
	if !cmd.IsSuperAdmin {
		return nil, &manager.InvalidArgument{Reason: "debug requires super-admin"}
	}
	if len(args) == 0 || args[0] != "sell" {
		return nil, &manager.InvalidArgument{Reason: "usage: debug sell"}
	}
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	rt, err := f.Manager.RuntimeFor(accountID)
	if err != nil {
		return nil, err
	}
	if err := rt.Sell(ctx); err != nil {
		return nil, err
	}
	return []Reply{textReply("sell cycle forced")}, nil
}

func (f *Facade) handleWhitelist(cmd Command, args []string) ([]Reply, error) {
	if !cmd.IsSuperAdmin {
		return nil, &manager.InvalidArgument{Reason: "whitelist requires super-admin"}
	}
	if len(args) < 2 {
		return nil, &manager.InvalidArgument{Reason: "usage: whitelist user|group list|add|remove <id>"}
	}
	kind, action := args[0], args[1]
	if kind != "user" && kind != "group" {
		return nil, &manager.InvalidArgument{Reason: "unknown whitelist kind " + kind}
	}

	switch action {
	case "list":
		var ids []string
		if kind == "user" {
			ids = f.Store.WhitelistedUsers()
		} else {
			ids = f.Store.WhitelistedGroups()
		}
		return []Reply{textReply("%s: %s", kind, strings.Join(ids, ", "))}, nil

	case "add", "remove":
		if len(args) < 3 {
			return nil, &manager.InvalidArgument{Reason: "usage: whitelist " + kind + " " + action + " <id>"}
		}
		id := args[2]
		var err error
		switch {
		case kind == "user" && action == "add":
			err = f.Store.AddWhitelistUser(id)
		case kind == "user" && action == "remove":
			err = f.Store.RemoveWhitelistUser(id)
		case kind == "group" && action == "add":
			err = f.Store.AddWhitelistGroup(id)
		case kind == "group" && action == "remove":
			err = f.Store.RemoveWhitelistGroup(id)
		}
		if err != nil {
			return nil, err
		}
		return []Reply{textReply("已更新白名单")}, nil

	default:
		return nil, &manager.InvalidArgument{Reason: "unknown whitelist action " + action}
	}
}
