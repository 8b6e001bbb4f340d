// Package runtime implements the C4 account runtime: one instance per
// active account, owning a gateway session and the domain services layered
// on it, running the heartbeat and scheduler loops, holding session state
// and operation counters, and applying automation policy.
package runtime

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmrunner/engine/internal/domain"
	"github.com/farmrunner/engine/internal/gameconfig"
	"github.com/farmrunner/engine/internal/gateway"
)

// KickoutHandler is invoked when the gateway sends a Kickout notification.
// Per spec this is destructive: the manager deletes the account entirely.
type KickoutHandler func(accountID string)

// Deps bundles the constructor dependencies a Runtime needs beyond its own
// account-specific configuration.
type Deps struct {
	GatewayURL    string
	ClientVersion string
	Platform      string
	Config        *gameconfig.Store
	Logger        *zap.Logger
	OnKickout     KickoutHandler

	// HeartbeatIntervalSec overrides the heartbeat loop period; the floor
	// still applies, so a configured value below heartbeatFloorSeconds has
	// no effect. Zero falls back to the floor.
	HeartbeatIntervalSec int
	// RPCTimeout overrides the per-call timeout domain services use via
	// sessionProxy. Zero falls back to each call's own default.
	RPCTimeout time.Duration
}

// SessionState is the ephemeral, in-memory state of one logged-in account.
type SessionState struct {
	GID         int64
	DisplayName string
	Level       int
	Gold        int
	Exp         int
	Coupon      int

	// InitialGold/InitialExp snapshot the state at login so session deltas
	// (gains since login) can be reported in status.
	InitialGold int
	InitialExp  int

	Connected  bool
	LoginReady bool

	LastGainGold int
	LastGainExp  int

	LastPlantError    string
	LastPlantFailures int
}

// Runtime is the live task set and state attached to one running account.
type Runtime struct {
	accountID string
	code      string
	deps      Deps

	logger *zap.Logger

	sessionMu sync.RWMutex
	session   *gateway.Session

	farm    *domain.FarmService
	friend  *domain.FriendService
	task    *domain.TaskService
	ware    *domain.WarehouseService
	user    *domain.UserService

	settingsMu sync.RWMutex
	settings   Settings
	revision   int64

	stateMu sync.Mutex
	state   SessionState
	loginAt time.Time

	farmMu   sync.Mutex
	friendMu sync.Mutex

	quota *dailyQuotaTable

	landCache        []domain.Land
	pendingHarvested []int
	landCacheMu      sync.Mutex

	friendStatsMu sync.Mutex
	friendStats   FriendStats

	opsMu sync.Mutex
	ops   map[string]int64

	lastPushFarmAt atomic.Int64 // unix nanos

	schedMu     sync.Mutex
	nextFarmAt  time.Time
	nextFriendAt time.Time
	backoff     time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	startErr  error
}

// FriendStats tracks cumulative friend-interaction counts (supplemented
// feature, not in the distilled spec but present in the original source).
type FriendStats struct {
	FriendCount int
	StealCount  int64
	HelpCount   int64
}

const heartbeatFloorSeconds = 10

// New constructs an idle Runtime for one account. Call Start to bring it up.
func New(accountID, code string, settings Settings, deps Deps) *Runtime {
	logger := deps.Logger.Named("runtime").With(zap.String("account_id", accountID))
	return &Runtime{
		accountID: accountID,
		code:      code,
		deps:      deps,
		logger:    logger,
		settings:  settings,
		ops:       make(map[string]int64),
		quota:     newDailyQuotaTable(),
	}
}

// Start is idempotent: opens the gateway session, logs in, populates
// session state, and spawns the heartbeat and scheduler loops. If any step
// fails, the session is stopped and all spawned tasks are released before
// the error surfaces.
func (r *Runtime) Start(parent context.Context) error {
	r.startOnce.Do(func() {
		r.startErr = r.start(parent)
	})
	return r.startErr
}

func (r *Runtime) start(parent context.Context) error {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	// Domain services are wired once against a proxy that forwards to
	// whichever *gateway.Session is currently live, since reconnection
	// replaces the session outright rather than reusing a torn-down one.
	r.farm = domain.NewFarmService(sessionProxy{r})
	r.friend = domain.NewFriendService(sessionProxy{r})
	r.task = domain.NewTaskService(sessionProxy{r})
	r.ware = domain.NewWarehouseService(sessionProxy{r}, r.deps.Config)
	r.user = domain.NewUserService(sessionProxy{r})

	if err := r.connectAndLogin(parent); err != nil {
		r.cancel()
		return err
	}

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.heartbeatLoop()
	}()
	go func() {
		defer r.wg.Done()
		r.schedulerLoop()
	}()

	return nil
}

func (r *Runtime) connectAndLogin(ctx context.Context) error {
	session := gateway.New(r.deps.Logger)
	session.OnNotify("*", r.handleNotify)

	if err := session.Start(ctx, gateway.DialParams{
		URL:      r.deps.GatewayURL,
		Platform: r.deps.Platform,
		OS:       "android",
		Version:  r.deps.ClientVersion,
		Code:     r.code,
	}); err != nil {
		return fmt.Errorf("runtime: connect failed: %w", err)
	}

	r.swapSession(session)

	login, err := r.user.Login(ctx, r.code, r.deps.ClientVersion, domain.DeviceProfile{
		DeviceID: uuid.NewString(),
		Model:    "farmrunner-virtual",
		OSVer:    "android-14",
	})
	if err != nil {
		session.Stop()
		return fmt.Errorf("runtime: login failed: %w", err)
	}

	r.stateMu.Lock()
	r.state = SessionState{
		GID:         login.GID,
		DisplayName: login.DisplayName,
		Level:       login.Level,
		Gold:        login.Gold,
		Exp:         login.Exp,
		Coupon:      login.Coupon,
		InitialGold: login.Gold,
		InitialExp:  login.Exp,
		Connected:   true,
		LoginReady:  true,
	}
	if r.loginAt.IsZero() {
		r.loginAt = time.Now()
	}
	r.stateMu.Unlock()

	// Read the bag once to detect the current coupon count as part of
	// startup, matching the spec's explicit startup sequence.
	if bag, err := r.ware.Bag(ctx, login.GID); err == nil {
		for _, item := range bag {
			if item.ItemID == 1002 {
				r.stateMu.Lock()
				r.state.Coupon = item.Count
				r.stateMu.Unlock()
			}
		}
	}

	return nil
}

// Stop cancels and joins every background task and releases the gateway
// session. Idempotent.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		if session := r.currentSession(); session != nil {
			session.Stop()
		}
		r.logger.Info("runtime stopped")
	})
}

// ApplySettings hot-reloads the account's settings without a restart.
func (r *Runtime) ApplySettings(s Settings) {
	r.settingsMu.Lock()
	r.settings = s
	r.revision++
	r.settingsMu.Unlock()
}

func (r *Runtime) currentSettings() Settings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

func (r *Runtime) incOp(name string, n int64) {
	if n <= 0 {
		return
	}
	r.opsMu.Lock()
	r.ops[name] += n
	r.opsMu.Unlock()
}

// Operations returns a snapshot of the monotonically increasing operation
// counters.
func (r *Runtime) Operations() map[string]int64 {
	r.opsMu.Lock()
	defer r.opsMu.Unlock()
	out := make(map[string]int64, len(r.ops))
	for k, v := range r.ops {
		out[k] = v
	}
	return out
}

func (r *Runtime) sessionState() SessionState {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *Runtime) sessionElapsedHours() float64 {
	r.stateMu.Lock()
	loginAt := r.loginAt
	r.stateMu.Unlock()
	if loginAt.IsZero() {
		return 0
	}
	return time.Since(loginAt).Hours()
}

func (r *Runtime) setConnected(connected bool) {
	r.stateMu.Lock()
	r.state.Connected = connected
	if !connected {
		r.state.LoginReady = false
	}
	r.stateMu.Unlock()
}

func (r *Runtime) swapSession(s *gateway.Session) {
	r.sessionMu.Lock()
	prev := r.session
	r.session = s
	r.sessionMu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

func (r *Runtime) currentSession() *gateway.Session {
	r.sessionMu.RLock()
	defer r.sessionMu.RUnlock()
	return r.session
}

// sessionProxy implements domain.Caller by forwarding to whichever session
// is currently live, so domain services never hold a stale pointer across a
// reconnect.
type sessionProxy struct{ r *Runtime }

func (p sessionProxy) Call(ctx context.Context, service, method string, body []byte, timeout time.Duration) ([]byte, error) {
	session := p.r.currentSession()
	if session == nil {
		return nil, gateway.ErrDisconnected
	}
	if configured := p.r.deps.RPCTimeout; configured > 0 {
		timeout = configured
	}
	return session.Call(ctx, service, method, body, timeout)
}

// heartbeatInterval returns the configured heartbeat period, floored at
// heartbeatFloorSeconds per spec.
func (r *Runtime) heartbeatInterval() time.Duration {
	sec := r.deps.HeartbeatIntervalSec
	if sec < heartbeatFloorSeconds {
		sec = heartbeatFloorSeconds
	}
	return time.Duration(sec) * time.Second
}

// rpcTimeout returns the configured RPC timeout, or fallback if unset.
func (r *Runtime) rpcTimeout(fallback time.Duration) time.Duration {
	if r.deps.RPCTimeout > 0 {
		return r.deps.RPCTimeout
	}
	return fallback
}

func uniformBetween(min, max int) time.Duration {
	if max <= min {
		return time.Duration(min) * time.Second
	}
	return time.Duration(min+rand.Intn(max-min+1)) * time.Second
}
