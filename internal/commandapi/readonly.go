package commandapi

import (
	"context"
	"sort"
	"strings"

	"github.com/farmrunner/engine/internal/domain"
	"github.com/farmrunner/engine/internal/manager"
)

func (f *Facade) handleSeed(args []string) ([]Reply, error) {
	if len(args) == 0 || args[0] != "list" {
		return nil, &manager.InvalidArgument{Reason: "usage: seed list"}
	}
	plants := f.Config.AllPlants()
	sort.Slice(plants, func(i, j int) bool { return plants[i].Level < plants[j].Level })
	var b strings.Builder
	for _, p := range plants {
		b.WriteString(p.Name)
		b.WriteString(" ")
	}
	return []Reply{textReply("seeds(%d): %s", len(plants), strings.TrimSpace(b.String()))}, nil
}

func (f *Facade) handleBag(ctx context.Context, accountID string, args []string) ([]Reply, error) {
	if len(args) == 0 || args[0] != "view" {
		return nil, &manager.InvalidArgument{Reason: "usage: bag view"}
	}
	if accountID == "" {
		return nil, &manager.NotRunning{AccountID: ""}
	}
	rt, err := f.Manager.RuntimeFor(accountID)
	if err != nil {
		return nil, err
	}
	status := rt.Status()
	return []Reply{textReply("coupon=%d", status.Coupon)}, nil
}

func (f *Facade) handleAnalytics(args []string) ([]Reply, error) {
	sortKey := "profit"
	if len(args) > 0 {
		sortKey = args[0]
	}
	entries := domain.Rank(f.Config, sortKey)
	if len(entries) > 5 {
		entries = entries[:5]
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Name)
		b.WriteString(" ")
	}
	return []Reply{textReply("top(%s): %s", sortKey, strings.TrimSpace(b.String()))}, nil
}
