package commandapi

import (
	"strconv"

	"github.com/farmrunner/engine/internal/manager"
)

func (f *Facade) handleAutomation(accountID string, args []string) ([]Reply, error) {
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	if len(args) == 0 {
		return nil, &manager.InvalidArgument{Reason: "automation requires a subcommand"}
	}

	switch args[0] {
	case "view":
		return []Reply{textReply("revision=%d", f.Manager.SettingsRevision(accountID))}, nil

	case "set":
		if len(args) < 3 {
			return nil, &manager.InvalidArgument{Reason: "usage: automation set <key> <on|off>"}
		}
		on, err := parseOnOff(args[2])
		if err != nil {
			return nil, err
		}
		patch := map[string]any{"automation": map[string]any{args[1]: on}}
		if _, err := f.Manager.SaveSettings(accountID, patch); err != nil {
			return nil, err
		}
		return []Reply{textReply("已更新: %s=%v", args[1], on)}, nil

	case "fertilizer":
		if len(args) < 2 {
			return nil, &manager.InvalidArgument{Reason: "usage: automation fertilizer <mode>"}
		}
		patch := map[string]any{"automation": map[string]any{"fertilizer": args[1]}}
		if _, err := f.Manager.SaveSettings(accountID, patch); err != nil {
			return nil, err
		}
		return []Reply{textReply("已更新施肥策略: %s", args[1])}, nil

	case "allon", "alloff":
		on := args[0] == "allon"
		patch := map[string]any{"automation": map[string]any{
			"farm": on, "farm_push": on, "land_upgrade": on,
			"friend": on, "friend_steal": on, "friend_help": on, "friend_bad": on,
			"task": on, "sell": on,
		}}
		if _, err := f.Manager.SaveSettings(accountID, patch); err != nil {
			return nil, err
		}
		return []Reply{textReply("已全部%s", map[bool]string{true: "开启", false: "关闭"}[on])}, nil

	default:
		return nil, &manager.InvalidArgument{Reason: "unknown automation subcommand " + args[0]}
	}
}

func (f *Facade) handleSettings(accountID string, args []string) ([]Reply, error) {
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	if len(args) < 2 {
		return nil, &manager.InvalidArgument{Reason: "usage: settings strategy|seed|interval|quiet <value...>"}
	}

	switch args[0] {
	case "strategy":
		patch := map[string]any{"strategy": args[1]}
		if _, err := f.Manager.SaveSettings(accountID, patch); err != nil {
			return nil, err
		}
		return []Reply{textReply("策略已更新: %s", args[1])}, nil

	case "seed":
		seedID, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, &manager.InvalidArgument{Reason: "bad seed id " + args[1]}
		}
		if _, err := f.Manager.SaveSettings(accountID, map[string]any{"seedId": seedID}); err != nil {
			return nil, err
		}
		return []Reply{textReply("种子已更新: %d", seedID)}, nil

	case "interval":
		if len(args) < 3 {
			return nil, &manager.InvalidArgument{Reason: "usage: settings interval <farm|friend> <min> <max>"}
		}
		minV, err1 := strconv.Atoi(args[2])
		maxV := minV
		if len(args) > 3 {
			maxV, _ = strconv.Atoi(args[3])
		}
		if err1 != nil {
			return nil, &manager.InvalidArgument{Reason: "bad interval value"}
		}
		if args[1] != "farm" && args[1] != "friend" {
			return nil, &manager.InvalidArgument{Reason: "usage: settings interval <farm|friend> <min> <max>"}
		}
		patch := map[string]any{"intervals": map[string]any{
			args[1] + "Min": minV, args[1] + "Max": maxV,
		}}
		if _, err := f.Manager.SaveSettings(accountID, patch); err != nil {
			return nil, err
		}
		return []Reply{textReply("间隔已更新")}, nil

	case "quiet":
		if len(args) < 3 {
			return nil, &manager.InvalidArgument{Reason: "usage: settings quiet <start> <end>"}
		}
		patch := map[string]any{"friendQuietHours": map[string]any{
			"enabled": true, "start": args[1], "end": args[2],
		}}
		if _, err := f.Manager.SaveSettings(accountID, patch); err != nil {
			return nil, err
		}
		return []Reply{textReply("安静时段已更新: %s-%s", args[1], args[2])}, nil

	default:
		return nil, &manager.InvalidArgument{Reason: "unknown settings subcommand " + args[0]}
	}
}

// handleTheme updates the C7 render-theme preference and mirrors it into the
// acting user's bound account settings, if any, so a consumer reading
// settings alone still sees the chosen theme.
func (f *Facade) handleTheme(accountID string, args []string) ([]Reply, error) {
	if len(args) == 0 {
		return nil, &manager.InvalidArgument{Reason: "usage: theme dark|light"}
	}
	switch args[0] {
	case "dark", "light":
		if err := f.Store.SetTheme(args[0]); err != nil {
			return nil, err
		}
		if accountID != "" {
			if _, err := f.Manager.SaveSettings(accountID, map[string]any{"renderTheme": args[0]}); err != nil {
				return nil, err
			}
		}
		return []Reply{textReply("主题已更新: %s", args[0])}, nil
	default:
		return nil, &manager.InvalidArgument{Reason: "unknown theme " + args[0]}
	}
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, &manager.InvalidArgument{Reason: "expected on|off, got " + s}
	}
}
