package scheduler

import (
	"cmp"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func sortEntries(entries []domain.ScheduleEntry) {
	slices.SortFunc(entries, func(a, b domain.ScheduleEntry) int {
		return cmp.Or(
			a.Start.Compare(b.Start),
			cmp.Compare(a.Machine, b.Machine),
			cmp.Compare(a.OrderID, b.OrderID),
			cmp.Compare(a.Process, b.Process),
		)
	})
}

// rollupOrders 汇总每个工单的完工时间和延期情况；没有任何排产条目的工单记入 unplanned
func (s *Scheduler) rollupOrders(entries []domain.ScheduleEntry, reasons map[string]string) ([]domain.OrderRollup, []domain.UnplannedOrder) {
	completion := make(map[string]time.Time)
	for _, e := range entries {
		if e.End.After(completion[e.OrderID]) {
			completion[e.OrderID] = e.End
		}
	}

	var (
		rollups   []domain.OrderRollup
		unplanned []domain.UnplannedOrder
	)
	for _, order := range s.orders {
		done, ok := completion[order.ID]
		if !ok {
			reason := reasons[order.ID]
			if reason == "" {
				reason = ReasonAllStepsUnavailable
			}
			unplanned = append(unplanned, domain.UnplannedOrder{OrderID: order.ID, Reason: reason})
			continue
		}

		r := domain.OrderRollup{OrderID: order.ID, DueDate: order.DueDate, Completion: done}
		if !order.DueDate.IsZero() && done.After(order.DueDate) {
			r.LatenessHours = done.Sub(order.DueDate).Hours()
			r.AtRisk = true
		}
		rollups = append(rollups, r)
	}

	return rollups, unplanned
}

// loadSummary 统计每台机器每天已分配工时与可用工时，从排产起始日期统计到最后一个有任务的日期
func (s *Scheduler) loadSummary(entries []domain.ScheduleEntry) []domain.MachineDayLoad {
	loc := s.calendar.Location()
	midnight := func(t time.Time) time.Time {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}

	type loadKey struct {
		machine string
		date    time.Time
	}
	assigned := make(map[loadKey]float64)

	first := midnight(s.parameters.HorizonStart)
	last := first
	for _, e := range entries {
		for _, iv := range e.Intervals {
			// 区间可能跨过零点，按天拆开
			for start := iv.Start; start.Before(iv.End); {
				day := midnight(start)
				end := day.AddDate(0, 0, 1)
				if iv.End.Before(end) {
					end = iv.End
				}
				if !day.Before(first) {
					assigned[loadKey{e.Machine, day}] += end.Sub(start).Hours()
					if day.After(last) {
						last = day
					}
				}
				start = end
			}
		}
	}
	if len(assigned) == 0 {
		return nil
	}

	names := make([]string, 0, len(s.plant.Machines))
	for _, m := range s.plant.Machines {
		names = append(names, m.Name)
	}
	slices.Sort(names)

	var res []domain.MachineDayLoad
	for _, name := range names {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			res = append(res, domain.MachineDayLoad{
				Machine:        name,
				Date:           day,
				AssignedHours:  assigned[loadKey{name, day}],
				AvailableHours: s.calendar.DayHours(name, day),
			})
		}
	}
	return res
}
