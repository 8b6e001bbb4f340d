package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// FarmService wraps the land/plant/harvest RPCs.
type FarmService struct {
	caller Caller
}

// NewFarmService constructs a FarmService bound to the given caller.
func NewFarmService(caller Caller) *FarmService {
	return &FarmService{caller: caller}
}

// Lands fetches per-land status and the day-scoped operation-limits table.
// The caller (internal/runtime) is responsible for merging OperationLimits
// into its own daily quota table.
func (f *FarmService) Lands(ctx context.Context, gid int64) (LandsResult, error) {
	reqBody, err := json.Marshal(struct {
		GID int64 `json:"gid"`
	}{GID: gid})
	if err != nil {
		return LandsResult{}, fmt.Errorf("domain: marshal lands request: %w", err)
	}

	respBody, err := f.caller.Call(ctx, "FarmService", "Lands", reqBody, defaultTimeout)
	if err != nil {
		return LandsResult{}, err
	}

	var out LandsResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return LandsResult{}, fmt.Errorf("domain: decode lands reply: %w", err)
	}
	return out, nil
}

// PlantFailure records a single land's plant failure for the caller's
// lastPlantFailures accumulator.
type PlantFailure struct {
	LandID int
	Err    error
}

// Plant sends one plant request per land (not a single batch call) so
// partial success remains observable. It takes per-seed batches
// ({seedId, landIds[]}) and sends each land with its batch's seed id; it has
// no form that takes or sends a flat landId→seedId map.
//
// Returns the lands successfully planted and the accumulated per-land
// failures; the last failure's error is also returned as lastErr so the
// caller can expose lastPlantError.
func (f *FarmService) Plant(ctx context.Context, gid int64, batches []PlantBatch) (planted []int, failures []PlantFailure, lastErr error) {
	for _, batch := range batches {
		for _, landID := range batch.LandIDs {
			body, err := json.Marshal(struct {
				GID    int64 `json:"gid"`
				LandID int   `json:"landId"`
				SeedID int   `json:"seedId"`
			}{GID: gid, LandID: landID, SeedID: batch.SeedID})
			if err != nil {
				failures = append(failures, PlantFailure{LandID: landID, Err: err})
				lastErr = err
				continue
			}

			if _, err := f.caller.Call(ctx, "FarmService", "Plant", body, defaultTimeout); err != nil {
				failures = append(failures, PlantFailure{LandID: landID, Err: err})
				lastErr = err
				continue
			}
			planted = append(planted, landID)
		}
	}
	return planted, failures, lastErr
}

// Fertilize issues one request per land. The gateway rejects batched
// fertilize requests, so this stops at the first failure and returns the
// count that succeeded before it.
func (f *FarmService) Fertilize(ctx context.Context, gid int64, landIDs []int, itemID int) (succeeded int, err error) {
	for _, landID := range landIDs {
		body, merr := json.Marshal(struct {
			GID    int64 `json:"gid"`
			LandID int   `json:"landId"`
			ItemID int   `json:"itemId"`
		}{GID: gid, LandID: landID, ItemID: itemID})
		if merr != nil {
			return succeeded, merr
		}
		if _, err := f.caller.Call(ctx, "FarmService", "Fertilize", body, defaultTimeout); err != nil {
			return succeeded, err
		}
		succeeded++
	}
	return succeeded, nil
}

// ClearWeed removes weeds from the given lands in one batched request.
func (f *FarmService) ClearWeed(ctx context.Context, gid int64, landIDs []int) (int, error) {
	return f.clearBatch(ctx, gid, "ClearWeed", landIDs)
}

// ClearBug removes insects from the given lands in one batched request.
func (f *FarmService) ClearBug(ctx context.Context, gid int64, landIDs []int) (int, error) {
	return f.clearBatch(ctx, gid, "ClearBug", landIDs)
}

// Water waters the given lands in one batched request.
func (f *FarmService) Water(ctx context.Context, gid int64, landIDs []int) (int, error) {
	return f.clearBatch(ctx, gid, "Water", landIDs)
}

func (f *FarmService) clearBatch(ctx context.Context, gid int64, method string, landIDs []int) (int, error) {
	if len(landIDs) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(struct {
		GID     int64 `json:"gid"`
		LandIDs []int `json:"landIds"`
	}{GID: gid, LandIDs: landIDs})
	if err != nil {
		return 0, fmt.Errorf("domain: marshal %s request: %w", method, err)
	}
	if _, err := f.caller.Call(ctx, "FarmService", method, body, defaultTimeout); err != nil {
		return 0, err
	}
	return len(landIDs), nil
}

// Harvest submits a batch harvest request for the given land ids.
func (f *FarmService) Harvest(ctx context.Context, gid int64, landIDs []int) error {
	if len(landIDs) == 0 {
		return nil
	}
	body, err := json.Marshal(struct {
		GID     int64 `json:"gid"`
		LandIDs []int `json:"landIds"`
	}{GID: gid, LandIDs: landIDs})
	if err != nil {
		return fmt.Errorf("domain: marshal harvest request: %w", err)
	}
	_, err = f.caller.Call(ctx, "FarmService", "Harvest", body, defaultTimeout)
	return err
}

// RemovePlant clears a dead or harvested plant from a land. Errors from this
// call are expected to be ignored by the caller per the farm state machine
// (harvested lands are re-queued into the plant pool regardless of whether
// remove-plant was actually necessary).
func (f *FarmService) RemovePlant(ctx context.Context, gid int64, landID int) error {
	body, err := json.Marshal(struct {
		GID    int64 `json:"gid"`
		LandID int   `json:"landId"`
	}{GID: gid, LandID: landID})
	if err != nil {
		return fmt.Errorf("domain: marshal remove-plant request: %w", err)
	}
	_, err = f.caller.Call(ctx, "FarmService", "RemovePlant", body, defaultTimeout)
	return err
}

// Unlock unlocks a single land.
func (f *FarmService) Unlock(ctx context.Context, gid int64, landID int) error {
	body, err := json.Marshal(struct {
		GID    int64 `json:"gid"`
		LandID int   `json:"landId"`
	}{GID: gid, LandID: landID})
	if err != nil {
		return fmt.Errorf("domain: marshal unlock request: %w", err)
	}
	_, err = f.caller.Call(ctx, "FarmService", "Unlock", body, defaultTimeout)
	return err
}

// Upgrade upgrades a single land.
func (f *FarmService) Upgrade(ctx context.Context, gid int64, landID int) error {
	body, err := json.Marshal(struct {
		GID    int64 `json:"gid"`
		LandID int   `json:"landId"`
	}{GID: gid, LandID: landID})
	if err != nil {
		return fmt.Errorf("domain: marshal upgrade request: %w", err)
	}
	_, err = f.caller.Call(ctx, "FarmService", "Upgrade", body, defaultTimeout)
	return err
}
