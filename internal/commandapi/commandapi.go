// Package commandapi is the Go-level command contract consumed by an
// external chat bridge: tokenized text in, one or more replies out. It
// resolves the acting user's bound account through the state store, applies
// the rate limiter's read/write classification, and routes to the runtime
// manager.
package commandapi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/gameconfig"
	"github.com/farmrunner/engine/internal/manager"
	"github.com/farmrunner/engine/internal/ratelimit"
	"github.com/farmrunner/engine/internal/statestore"
)

// Reply is one unit of output the router renders back to the chat bridge.
type Reply struct {
	Text        string
	ImageURL    string
	PreferImage bool
}

func textReply(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

// Command is one tokenized inbound invocation.
type Command struct {
	User      string
	Group     string
	IsSuperAdmin bool
	Args      []string
}

// Facade dispatches tokenized commands against the manager, rate limiter,
// state store, and game catalogue.
type Facade struct {
	Manager *manager.Manager
	Limiter *ratelimit.Limiter
	Store   *statestore.Store
	Config  *gameconfig.Store
	Logger  *zap.Logger
}

// Dispatch classifies, rate-limits, and routes one command, translating any
// error into the spec's stable user-facing templates.
func (f *Facade) Dispatch(ctx context.Context, cmd Command) []Reply {
	if len(cmd.Args) == 0 {
		return []Reply{textReply("未知命令 [E_INTERNAL]")}
	}

	verb := cmd.Args[0]
	isWrite := isWriteVerb(verb, cmd.Args)
	accountID, _ := f.Store.AccountForUser(cmd.User)

	lease, err := f.Limiter.Acquire(ctx, cmd.User, isWrite, accountID)
	if err != nil {
		if rl, ok := err.(*ratelimit.RateLimited); ok {
			return []Reply{textReply("操作太快，请等待 %.1fs 后重试 [E_RATE_LIMITED]", rl.WaitSec)}
		}
		return []Reply{textReply("命令执行异常: %v [E_INTERNAL]", err)}
	}
	defer lease.Release()

	replies, err := f.route(ctx, cmd, accountID)
	if err != nil {
		return []Reply{translateError(err)}
	}
	return replies
}

func isWriteVerb(verb string, args []string) bool {
	switch verb {
	case "status", "view", "list", "lands", "analytics", "logs", "account-logs":
		return false
	}
	switch verb {
	case "service", "account", "farm", "friend", "automation", "settings", "theme", "debug", "whitelist", "seed", "bag":
		return !isReadSubcommand(args)
	}
	return true
}

func isReadSubcommand(args []string) bool {
	// whitelist's read/write split sits one token deeper ("whitelist user
	// list" vs "whitelist user add <id>").
	if args[0] == "whitelist" {
		return len(args) >= 3 && args[2] == "list"
	}
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "view", "list", "lands", "status":
		return true
	}
	return false
}

func (f *Facade) route(ctx context.Context, cmd Command, accountID string) ([]Reply, error) {
	verb := cmd.Args[0]
	rest := cmd.Args[1:]

	switch verb {
	case "service":
		return f.handleService(ctx, rest)
	case "account":
		return f.handleAccount(ctx, cmd.User, rest)
	case "status":
		return f.handleStatus(accountID)
	case "farm":
		return f.handleFarm(ctx, accountID, rest)
	case "friend":
		return f.handleFriend(ctx, accountID, rest)
	case "seed":
		return f.handleSeed(rest)
	case "bag":
		return f.handleBag(ctx, accountID, rest)
	case "analytics":
		return f.handleAnalytics(rest)
	case "automation":
		return f.handleAutomation(accountID, rest)
	case "settings":
		return f.handleSettings(accountID, rest)
	case "theme":
		return f.handleTheme(accountID, rest)
	case "logs":
		return f.handleLogs(rest)
	case "account-logs":
		return f.handleAccountLogs(accountID, rest)
	case "debug":
		return f.handleDebug(ctx, cmd, accountID, rest)
	case "whitelist":
		return f.handleWhitelist(cmd, rest)
	default:
		return []Reply{textReply("未知命令: %s [E_INTERNAL]", verb)}, nil
	}
}

func translateError(err error) Reply {
	switch err.(type) {
	case *manager.NotRunning:
		return textReply("操作失败: %v [E_TIMEOUT]", err)
	case *manager.NotFound:
		return textReply("操作失败: %v [E_NOT_FOUND]", err)
	case *manager.InvalidArgument:
		return textReply("操作失败: %v [E_INVALID_ARGUMENT]", err)
	case *statestore.AlreadyBound:
		return textReply("操作失败: %v [E_ALREADY_BOUND]", err)
	default:
		return textReply("命令执行异常: %v [E_INTERNAL]", err)
	}
}
