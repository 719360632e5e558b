package service

import (
	"context"
	"math"
	"sort"

	"github.com/iliyamo/tuition-marketplace/internal/apperr"
	"github.com/iliyamo/tuition-marketplace/internal/model"
)

// RecentActivityLimit is the size of the merged activity feed.
const RecentActivityLimit = 5

// AnalyticsService builds the admin dashboard. It never writes.
type AnalyticsService struct {
	store AnalyticsStore
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	if store == nil {
		panic("nil AnalyticsStore passed to NewAnalyticsService")
	}
	return &AnalyticsService{store: store}
}

func (s *AnalyticsService) Stats(ctx context.Context) (*model.AdminStats, error) {
	var (
		st  model.AdminStats
		err error
	)
	fail := func(err error) (*model.AdminStats, error) {
		return nil, apperr.Wrap(apperr.Store, "could not compute statistics", err)
	}

	if st.Totals.Users, err = s.store.CountUsers(ctx); err != nil {
		return fail(err)
	}
	if st.Totals.Tuitions, err = s.store.CountTuitions(ctx); err != nil {
		return fail(err)
	}
	if st.Totals.AssignedTuition, err = s.store.CountTuitionsByStatus(ctx, model.TuitionAssigned); err != nil {
		return fail(err)
	}
	if st.Totals.Revenue, err = s.store.Revenue(ctx); err != nil {
		return fail(err)
	}
	st.Totals.SuccessRate = percent(st.Totals.AssignedTuition, st.Totals.Tuitions)

	counts, err := s.store.RoleCounts(ctx)
	if err != nil {
		return fail(err)
	}
	st.RoleDistribution = roleDistribution(counts)

	if st.UserGrowth, err = s.store.UserGrowth(ctx); err != nil {
		return fail(err)
	}
	if st.TuitionGrowth, err = s.store.TuitionGrowth(ctx); err != nil {
		return fail(err)
	}
	if st.RevenueGrowth, err = s.store.RevenueGrowth(ctx); err != nil {
		return fail(err)
	}
	st.UserGrowth = nonNil(st.UserGrowth)
	st.TuitionGrowth = nonNil(st.TuitionGrowth)
	st.RevenueGrowth = nonNil(st.RevenueGrowth)

	users, err := s.store.RecentUsers(ctx, RecentActivityLimit)
	if err != nil {
		return fail(err)
	}
	tuitions, err := s.store.RecentTuitions(ctx, RecentActivityLimit)
	if err != nil {
		return fail(err)
	}
	payments, err := s.store.RecentPayments(ctx, RecentActivityLimit)
	if err != nil {
		return fail(err)
	}
	st.RecentActivity = mergeActivity(users, tuitions, payments, RecentActivityLimit)
	return &st, nil
}

// percent returns part/whole as a percentage rounded to two decimals, or 0
// when whole is 0.
func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

// roleDistribution lists the known roles first, in a fixed order, followed by
// any unexpected role values sorted by name.
func roleDistribution(counts map[string]int64) []model.RoleShare {
	var total int64
	for _, n := range counts {
		total += n
	}
	out := make([]model.RoleShare, 0, len(counts)+3)
	seen := map[string]bool{}
	for _, r := range []string{model.RoleStudent, model.RoleTutor, model.RoleAdmin} {
		out = append(out, model.RoleShare{Role: r, Count: counts[r], Percentage: percent(counts[r], total)})
		seen[r] = true
	}
	var extra []string
	for r := range counts {
		if !seen[r] {
			extra = append(extra, r)
		}
	}
	sort.Strings(extra)
	for _, r := range extra {
		out = append(out, model.RoleShare{Role: r, Count: counts[r], Percentage: percent(counts[r], total)})
	}
	return out
}

func mergeActivity(users []model.User, tuitions []model.Tuition, payments []model.Payment, limit int) []model.Activity {
	feed := make([]model.Activity, 0, len(users)+len(tuitions)+len(payments))
	for _, u := range users {
		feed = append(feed, model.Activity{Type: model.ActivityUser, Title: "New " + u.Role + " joined", Actor: u.Email, Date: u.CreatedAt})
	}
	for _, t := range tuitions {
		feed = append(feed, model.Activity{Type: model.ActivityTuition, Title: t.Title, Actor: t.StudentEmail, Date: t.CreatedAt})
	}
	for _, p := range payments {
		feed = append(feed, model.Activity{Type: model.ActivityPayment, Title: p.TuitionTitle, Actor: p.StudentEmail, Amount: p.Amount, Date: p.PaidAt})
	}
	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Date.After(feed[j].Date) })
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}

func nonNil(pts []model.MonthPoint) []model.MonthPoint {
	if pts == nil {
		return []model.MonthPoint{}
	}
	return pts
}
