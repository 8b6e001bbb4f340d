package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaskInfo is one claimable or completed daily task.
type TaskInfo struct {
	ID        int  `json:"id"`
	Completed bool `json:"completed"`
	Claimed   bool `json:"claimed"`
}

// TaskService wraps the task-list and task-claim RPCs.
type TaskService struct {
	caller Caller
}

// NewTaskService constructs a TaskService bound to the given caller.
func NewTaskService(caller Caller) *TaskService {
	return &TaskService{caller: caller}
}

// List fetches the current task states.
func (t *TaskService) List(ctx context.Context, gid int64) ([]TaskInfo, error) {
	body, err := json.Marshal(struct {
		GID int64 `json:"gid"`
	}{GID: gid})
	if err != nil {
		return nil, fmt.Errorf("domain: marshal task list request: %w", err)
	}
	respBody, err := t.caller.Call(ctx, "TaskService", "List", body, defaultTimeout)
	if err != nil {
		return nil, err
	}
	var out []TaskInfo
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("domain: decode task list reply: %w", err)
	}
	return out, nil
}

// Claim claims the reward for one completed, unclaimed task.
func (t *TaskService) Claim(ctx context.Context, gid int64, taskID int) error {
	body, err := json.Marshal(struct {
		GID    int64 `json:"gid"`
		TaskID int   `json:"taskId"`
	}{GID: gid, TaskID: taskID})
	if err != nil {
		return fmt.Errorf("domain: marshal task claim request: %w", err)
	}
	_, err = t.caller.Call(ctx, "TaskService", "Claim", body, defaultTimeout)
	return err
}

// ClaimCompleted checks the task list and claims every completed, unclaimed
// task. Returns the ids successfully claimed.
func (t *TaskService) ClaimCompleted(ctx context.Context, gid int64) ([]int, error) {
	tasks, err := t.List(ctx, gid)
	if err != nil {
		return nil, err
	}

	var claimed []int
	for _, task := range tasks {
		if !task.Completed || task.Claimed {
			continue
		}
		if err := t.Claim(ctx, gid, task.ID); err != nil {
			continue
		}
		claimed = append(claimed, task.ID)
	}
	return claimed, nil
}
