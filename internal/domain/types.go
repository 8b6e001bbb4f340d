// Package domain implements the C2 typed RPC wrappers over the gateway
// session: farm/land queries and actions, friend interactions, tasks,
// warehouse, user login/heartbeat, and pure offline analytics.
//
// Every service here is a thin wrapper: encode request, call the gateway,
// decode reply. The one resend is WarehouseService.Sell, which re-sells a
// rejected batch item by item; otherwise none of them retry, schedule, or
// hold session state — that is internal/runtime's job.
package domain

import (
	"context"
	"time"
)

// Caller is the subset of gateway.Session a domain service needs. Declared
// here (consumer side) rather than imported from internal/gateway so domain
// stays decoupled from the transport, mirroring how the teacher's executor
// depends on a LogSink/StatusReporter interface rather than the concrete
// connection manager.
type Caller interface {
	Call(ctx context.Context, service, method string, body []byte, timeout time.Duration) ([]byte, error)
}

const defaultTimeout = 10 * time.Second

// phaseMillisThreshold is the boundary above which a raw phase time value is
// interpreted as milliseconds rather than seconds.
const phaseMillisThreshold = int64(1_000_000_000_000)

// Land is the per-land status returned by a lands inspection.
type Land struct {
	ID             int    `json:"id"`
	Unlocked       bool   `json:"unlocked"`
	Level          int    `json:"level"`
	CouldUnlock    bool   `json:"could_unlock"`
	CouldUpgrade   bool   `json:"could_upgrade"`
	Plant          *PlantOnLand `json:"plant,omitempty"`
}

// PlantOnLand is the crop occupying a land, if any.
type PlantOnLand struct {
	ID            int     `json:"id"`
	Stealable     bool    `json:"stealable"`
	DryNum        int     `json:"dry_num"`
	WeedOwners    []int64 `json:"weed_owners"`
	InsectOwners  []int64 `json:"insect_owners"`
	Phases        []Phase `json:"phases"`
}

// Phase is one growth stage. RawBegin keeps the begin time exactly as
// decoded; NormalizedBeginTime turns it into a time.Time, reading values
// above phaseMillisThreshold as milliseconds and the rest as seconds.
type Phase struct {
	Name      string `json:"name"`
	RawBegin  int64  `json:"beginTime"`
}

// NormalizedBeginTime converts RawBegin to a time.Time, treating values above
// phaseMillisThreshold as milliseconds and smaller values as seconds.
func (p Phase) NormalizedBeginTime() time.Time {
	if p.RawBegin > phaseMillisThreshold {
		return time.UnixMilli(p.RawBegin)
	}
	return time.Unix(p.RawBegin, 0)
}

// CurrentPhase returns the phase with the greatest begin time not after now.
// ok is false if no phase qualifies (e.g. an empty phase list).
func (p PlantOnLand) CurrentPhase(now time.Time) (Phase, bool) {
	var best Phase
	found := false
	for _, ph := range p.Phases {
		t := ph.NormalizedBeginTime()
		if t.After(now) {
			continue
		}
		if !found || t.After(best.NormalizedBeginTime()) {
			best = ph
			found = true
		}
	}
	return best, found
}

// OperationLimits is the day-scoped per-action quota table reported by the
// gateway in a lands inspection reply.
type OperationLimits struct {
	Steal int `json:"steal"`
	Water int `json:"water"`
	Weed  int `json:"weed"`
	Bug   int `json:"bug"`
	Bad   int `json:"bad"`
}

// LandsResult is the decoded reply of a lands inspection.
type LandsResult struct {
	Lands           []Land          `json:"lands"`
	OperationLimits OperationLimits `json:"operationLimits"`
}

// PlantBatch is one per-seed planting batch: {seedId, landIds[]}.
type PlantBatch struct {
	SeedID  int   `json:"seedId"`
	LandIDs []int `json:"landIds"`
}

// BagItem is one inventory entry.
type BagItem struct {
	ItemID int `json:"itemId"`
	Count  int `json:"count"`
}

// FriendOpKind names one of the five friend-interaction verbs.
type FriendOpKind string

const (
	FriendOpSteal FriendOpKind = "steal"
	FriendOpWater FriendOpKind = "water"
	FriendOpWeed  FriendOpKind = "weed"
	FriendOpBug   FriendOpKind = "bug"
	FriendOpBad   FriendOpKind = "bad"
)

// FriendSummary is one entry of a friend list reply.
type FriendSummary struct {
	GID          int64  `json:"gid"`
	Name         string `json:"name"`
	Level        int    `json:"level"`
}

// canOperateReply is the decoded CheckCanOperate probe result: the server's
// reported remaining allowance for the given op kind against the given
// target.
type canOperateReply struct {
	OK        bool `json:"ok"`
	Allowance int  `json:"allowance"`
}
