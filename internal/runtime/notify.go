package runtime

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const farmPushDebounce = 500 * time.Millisecond

const (
	itemExp    = 1101
	itemCoupon = 1002
)

var itemGoldIDs = map[int]bool{1: true, 1001: true}

// handleNotify is the single entry point for every server-push event; it
// dispatches by event type, matching the six reactions the scheduler loop
// must honour.
func (r *Runtime) handleNotify(eventType string, body []byte) {
	switch eventType {
	case "Kickout":
		r.onKickout()
	case "LandsNotify":
		r.onLandsNotify()
	case "ItemNotify":
		r.onItemNotify(body)
	case "BasicNotify":
		r.onBasicNotify(body)
	case "TaskInfoNotify":
		r.onTaskInfoNotify()
	case "FriendApplicationReceivedNotify":
		r.onFriendApplicationReceived(body)
	}
}

func (r *Runtime) onKickout() {
	r.setConnected(false)
	r.logger.Warn("kicked out by gateway")
	if r.deps.OnKickout != nil {
		r.deps.OnKickout(r.accountID)
	}
}

func (r *Runtime) onLandsNotify() {
	settings := r.currentSettings()
	if !settings.Automation.FarmPush {
		return
	}

	now := time.Now().UnixNano()
	last := r.lastPushFarmAt.Load()
	if now-last < int64(farmPushDebounce) {
		return
	}
	if !r.farmMu.TryLock() {
		return
	}
	r.farmMu.Unlock()
	r.lastPushFarmAt.Store(now)

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, defaultHeartbeatTimeout)
		defer cancel()
		r.doFarmOperation(ctx, farmModeAll)
	}()
}

type itemNotifyPayload struct {
	ItemID int  `json:"itemId"`
	Count  *int `json:"count"`
	Delta  *int `json:"delta"`
}

func (r *Runtime) onItemNotify(body []byte) {
	var payload itemNotifyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	apply := func(cur int) (int, int) {
		if payload.Count != nil && *payload.Count > 0 {
			return *payload.Count, *payload.Count - cur
		}
		if payload.Delta != nil {
			next := cur + *payload.Delta
			if next < 0 {
				next = 0
			}
			return next, *payload.Delta
		}
		return cur, 0
	}

	switch {
	case payload.ItemID == itemExp:
		next, delta := apply(r.state.Exp)
		r.state.Exp = next
		r.state.LastGainExp = delta
	case itemGoldIDs[payload.ItemID]:
		next, delta := apply(r.state.Gold)
		r.state.Gold = next
		r.state.LastGainGold = delta
	case payload.ItemID == itemCoupon:
		next, _ := apply(r.state.Coupon)
		r.state.Coupon = next
	}
}

type basicNotifyPayload struct {
	Level int `json:"level"`
	Gold  int `json:"gold"`
	Exp   int `json:"exp"`
}

func (r *Runtime) onBasicNotify(body []byte) {
	var payload basicNotifyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if payload.Level >= 0 {
		r.state.Level = payload.Level
	}
	if payload.Gold >= 0 {
		r.state.Gold = payload.Gold
	}
	if payload.Exp >= 0 {
		r.state.Exp = payload.Exp
	}
}

func (r *Runtime) onTaskInfoNotify() {
	settings := r.currentSettings()
	if !settings.Automation.Task {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, defaultHeartbeatTimeout)
		defer cancel()
		r.claimCompletedTasks(ctx)
	}()
}

type friendApplicationPayload struct {
	GIDs []int64 `json:"gids"`
}

func (r *Runtime) onFriendApplicationReceived(body []byte) {
	var payload friendApplicationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}
	gid := r.sessionState().GID

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, defaultHeartbeatTimeout)
		defer cancel()
		for _, applicant := range payload.GIDs {
			if err := r.friend.AcceptApplication(ctx, gid, applicant); err != nil {
				r.logger.Warn("friend application auto-accept failed",
					zap.Int64("applicant_gid", applicant), zap.Error(err))
			}
		}
	}()
}
