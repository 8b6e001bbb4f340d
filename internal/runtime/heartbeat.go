package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// heartbeatLoop sends a liveness signal every heartbeatInterval (floored at
// heartbeatFloorSeconds). On error it marks the session disconnected but
// keeps looping — reconnection is the scheduler's job, not the heartbeat's.
func (r *Runtime) heartbeatLoop() {
	ticker := time.NewTicker(r.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sendHeartbeat()
		}
	}
}

func (r *Runtime) sendHeartbeat() {
	state := r.sessionState()
	if !state.LoginReady {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.rpcTimeout(defaultHeartbeatTimeout))
	defer cancel()

	if err := r.user.Heartbeat(ctx, state.GID, r.deps.ClientVersion); err != nil {
		r.logger.Warn("heartbeat failed", zap.Error(err))
		r.setConnected(false)
		return
	}
	r.setConnected(true)
}

const defaultHeartbeatTimeout = 10 * time.Second
