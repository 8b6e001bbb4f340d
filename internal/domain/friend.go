package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// FriendService wraps friend-list and friend-interaction RPCs.
type FriendService struct {
	caller Caller
}

// NewFriendService constructs a FriendService bound to the given caller.
func NewFriendService(caller Caller) *FriendService {
	return &FriendService{caller: caller}
}

// List fetches the caller's friend list.
func (f *FriendService) List(ctx context.Context, gid int64) ([]FriendSummary, error) {
	body, err := json.Marshal(struct {
		GID int64 `json:"gid"`
	}{GID: gid})
	if err != nil {
		return nil, fmt.Errorf("domain: marshal friend list request: %w", err)
	}
	respBody, err := f.caller.Call(ctx, "FriendService", "List", body, defaultTimeout)
	if err != nil {
		return nil, err
	}
	var out []FriendSummary
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("domain: decode friend list reply: %w", err)
	}
	return out, nil
}

// Lands fetches a friend's land status for inspection (steal/weed/bug
// targeting).
func (f *FriendService) Lands(ctx context.Context, gid, targetGID int64) ([]Land, error) {
	body, err := json.Marshal(struct {
		GID       int64 `json:"gid"`
		TargetGID int64 `json:"targetGid"`
	}{GID: gid, TargetGID: targetGID})
	if err != nil {
		return nil, fmt.Errorf("domain: marshal friend lands request: %w", err)
	}
	respBody, err := f.caller.Call(ctx, "FriendService", "Lands", body, defaultTimeout)
	if err != nil {
		return nil, err
	}
	var out []Land
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("domain: decode friend lands reply: %w", err)
	}
	return out, nil
}

// CheckCanOperate probes the server-side remaining allowance for one op kind
// against one target before issuing the real operation. Both the remote
// probe and the locally cached daily OperationLimits gate every op.
func (f *FriendService) CheckCanOperate(ctx context.Context, gid, targetGID int64, kind FriendOpKind) (allowance int, err error) {
	body, merr := json.Marshal(struct {
		GID       int64        `json:"gid"`
		TargetGID int64        `json:"targetGid"`
		Kind      FriendOpKind `json:"kind"`
	}{GID: gid, TargetGID: targetGID, Kind: kind})
	if merr != nil {
		return 0, fmt.Errorf("domain: marshal check-can-operate request: %w", merr)
	}

	respBody, err := f.caller.Call(ctx, "FriendService", "CheckCanOperate", body, defaultTimeout)
	if err != nil {
		return 0, err
	}

	var reply canOperateReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return 0, fmt.Errorf("domain: decode check-can-operate reply: %w", err)
	}
	if !reply.OK {
		return 0, nil
	}
	return reply.Allowance, nil
}

// Operate issues one of the five friend interactions. For FriendOpSteal,
// targetLandIDs is truncated by the caller (internal/runtime) to the
// CheckCanOperate-reported allowance before this call is made.
func (f *FriendService) Operate(ctx context.Context, gid, targetGID int64, kind FriendOpKind, targetLandIDs []int) (count int, err error) {
	body, merr := json.Marshal(struct {
		GID           int64        `json:"gid"`
		TargetGID     int64        `json:"targetGid"`
		Kind          FriendOpKind `json:"kind"`
		TargetLandIDs []int        `json:"targetLandIds,omitempty"`
	}{GID: gid, TargetGID: targetGID, Kind: kind, TargetLandIDs: targetLandIDs})
	if merr != nil {
		return 0, fmt.Errorf("domain: marshal friend operate request: %w", merr)
	}

	respBody, err := f.caller.Call(ctx, "FriendService", "Operate", body, defaultTimeout)
	if err != nil {
		return 0, err
	}

	var reply struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return 0, fmt.Errorf("domain: decode friend operate reply: %w", err)
	}
	return reply.Count, nil
}

// AcceptApplication accepts one pending friend application by gid.
func (f *FriendService) AcceptApplication(ctx context.Context, gid, applicantGID int64) error {
	body, err := json.Marshal(struct {
		GID          int64 `json:"gid"`
		ApplicantGID int64 `json:"applicantGid"`
	}{GID: gid, ApplicantGID: applicantGID})
	if err != nil {
		return fmt.Errorf("domain: marshal accept-application request: %w", err)
	}
	_, err = f.caller.Call(ctx, "FriendService", "AcceptApplication", body, defaultTimeout)
	return err
}
