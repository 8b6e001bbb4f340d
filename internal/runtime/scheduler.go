package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	schedulerTickInterval = time.Second
	backoffInitial        = time.Second
	backoffMax            = 30 * time.Second
)

// schedulerLoop is the cooperative single-thread cycle driving reconnection,
// the farm cycle, and the friend cycle. Each step is independent of the
// others within one tick.
func (r *Runtime) schedulerLoop() {
	r.schedMu.Lock()
	r.backoff = backoffInitial
	now := time.Now()
	r.nextFarmAt = now
	r.nextFriendAt = now
	r.schedMu.Unlock()

	ticker := time.NewTicker(schedulerTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.schedulerTick()
		}
	}
}

func (r *Runtime) schedulerTick() {
	if !r.sessionState().LoginReady {
		r.attemptReconnect()
		return
	}

	now := time.Now()
	settings := r.currentSettings()

	r.schedMu.Lock()
	farmDue := !now.Before(r.nextFarmAt)
	friendDue := !now.Before(r.nextFriendAt)
	r.schedMu.Unlock()

	if farmDue {
		if settings.Automation.Farm {
			r.doFarmOperation(r.ctx, farmModeAll)
		}
		if settings.Automation.Task {
			r.claimCompletedTasks(r.ctx)
		}
		r.schedMu.Lock()
		r.nextFarmAt = now.Add(uniformBetween(settings.Intervals.FarmMin, settings.Intervals.FarmMax))
		r.schedMu.Unlock()
	}

	if friendDue {
		if settings.Automation.Friend && !inQuietHours(settings.FriendQuietHours, now) {
			r.autoFriendCycle(r.ctx)
		}
		r.schedMu.Lock()
		r.nextFriendAt = now.Add(uniformBetween(settings.Intervals.FriendMin, settings.Intervals.FriendMax))
		r.schedMu.Unlock()
	}
}

// attemptReconnect backs off (1s doubling to 30s cap) between reconnect
// attempts; on success the backoff resets to its initial value.
func (r *Runtime) attemptReconnect() {
	r.schedMu.Lock()
	wait := r.backoff
	r.schedMu.Unlock()

	select {
	case <-r.ctx.Done():
		return
	case <-time.After(wait):
	}

	ctx, cancel := context.WithTimeout(r.ctx, defaultHeartbeatTimeout)
	defer cancel()

	if err := r.connectAndLogin(ctx); err != nil {
		r.logger.Warn("reconnect attempt failed", zap.Error(err))
		r.schedMu.Lock()
		r.backoff *= 2
		if r.backoff > backoffMax {
			r.backoff = backoffMax
		}
		r.schedMu.Unlock()
		return
	}

	r.schedMu.Lock()
	r.backoff = backoffInitial
	r.schedMu.Unlock()
	r.logger.Info("reconnected")
}

func (r *Runtime) claimCompletedTasks(ctx context.Context) {
	gid := r.sessionState().GID
	claimed, err := r.task.ClaimCompleted(ctx, gid)
	if err != nil {
		r.logger.Warn("task claim sweep failed", zap.Error(err))
		return
	}
	if len(claimed) > 0 {
		r.incOp("taskClaim", int64(len(claimed)))
	}
}
