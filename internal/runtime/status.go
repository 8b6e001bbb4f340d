package runtime

// Status is the external snapshot of one account runtime's live state,
// exposed through the command façade.
type Status struct {
	AccountID string
	Connected bool
	LoginReady bool

	GID         int64
	DisplayName string
	Level       int
	Gold        int
	Exp         int
	Coupon      int

	GoldGainedThisSession int
	ExpGainedThisSession  int

	Operations map[string]int64

	FriendStats FriendStats

	LandCount int

	// ExpRatePerHour and HoursToNextLevel are a supplemented estimate of
	// progress toward the next level, derived from the catalogue's level/exp
	// table and exp gained since login — absent if no exp has been gained yet.
	ExpRatePerHour   float64
	HoursToNextLevel float64
	HasLevelEstimate bool
}

// Status returns a point-in-time snapshot of the runtime's session state,
// operation counters, and supplemented metrics.
func (r *Runtime) Status() Status {
	state := r.sessionState()

	r.landCacheMu.Lock()
	landCount := len(r.landCache)
	r.landCacheMu.Unlock()

	r.friendStatsMu.Lock()
	friendStats := r.friendStats
	r.friendStatsMu.Unlock()

	st := Status{
		AccountID:             r.accountID,
		Connected:             state.Connected,
		LoginReady:            state.LoginReady,
		GID:                   state.GID,
		DisplayName:           state.DisplayName,
		Level:                 state.Level,
		Gold:                  state.Gold,
		Exp:                   state.Exp,
		Coupon:                state.Coupon,
		GoldGainedThisSession: state.Gold - state.InitialGold,
		ExpGainedThisSession:  state.Exp - state.InitialExp,
		Operations:            r.Operations(),
		FriendStats:           friendStats,
		LandCount:             landCount,
	}

	st.ExpRatePerHour, st.HoursToNextLevel, st.HasLevelEstimate = r.estimateLevelUp(state)
	return st
}

// estimateLevelUp projects hours-to-next-level from the exp gained since
// login, grounded on the level/exp table in the game config catalogue. It
// is a rough estimate, not a server-reported value: the session must have
// run long enough to have gained at least one point of exp.
func (r *Runtime) estimateLevelUp(state SessionState) (ratePerHour, hoursToNext float64, ok bool) {
	gained := state.Exp - state.InitialExp
	if gained <= 0 {
		return 0, 0, false
	}

	elapsedHours := r.sessionElapsedHours()
	if elapsedHours <= 0 {
		return 0, 0, false
	}
	ratePerHour = float64(gained) / elapsedHours

	nextLevelExp := r.deps.Config.ExpForLevel(state.Level + 1)
	if nextLevelExp <= 0 || nextLevelExp <= state.Exp {
		return ratePerHour, 0, true
	}
	remaining := float64(nextLevelExp - state.Exp)
	return ratePerHour, remaining / ratePerHour, true
}
