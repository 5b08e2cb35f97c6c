package utils

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// ValidateNoDoubleBooking 检查同一台机器上的占用区间是否重叠
func ValidateNoDoubleBooking(entries []domain.ScheduleEntry) error {
	type booking struct {
		domain.Interval
		orderID string
		process domain.Process
	}

	byMachine := make(map[string][]booking)
	for _, e := range entries {
		for _, iv := range e.Intervals {
			byMachine[e.Machine] = append(byMachine[e.Machine], booking{Interval: iv, orderID: e.OrderID, process: e.Process})
		}
	}

	for machine, bookings := range byMachine {
		slices.SortFunc(bookings, func(a, b booking) int {
			return cmp.Or(a.Start.Compare(b.Start), a.End.Compare(b.End))
		})
		for i := 1; i < len(bookings); i++ {
			prev, cur := bookings[i-1], bookings[i]
			if cur.Start.Before(prev.End) {
				return fmt.Errorf("机器 %s 上工单 %s 工序 %s 与工单 %s 工序 %s 的时间重叠",
					machine, prev.orderID, prev.process, cur.orderID, cur.process)
			}
		}
	}

	return nil
}

// ValidateOrderSequencing 检查同一工单的工序是否按顺序执行；严格锁定的条目按原样保留，不参与检查
func ValidateOrderSequencing(entries []domain.ScheduleEntry) error {
	byOrder := make(map[string][]domain.ScheduleEntry)
	for _, e := range entries {
		byOrder[e.OrderID] = append(byOrder[e.OrderID], e)
	}

	for orderID, steps := range byOrder {
		slices.SortFunc(steps, func(a, b domain.ScheduleEntry) int {
			return cmp.Compare(a.Seq, b.Seq)
		})
		for i := 1; i < len(steps); i++ {
			prev, cur := steps[i-1], steps[i]
			if cur.HasFlag(domain.FlagLocked) {
				continue
			}
			if cur.Start.Before(prev.End) {
				return fmt.Errorf("工单 %s 的工序 %s 在前道工序 %s 完成之前开始", orderID, cur.Process, prev.Process)
			}
		}
	}

	return nil
}

// ValidateLock 检查人工录入的锁定时间
func ValidateLock(lock *domain.Lock) error {
	if lock.Machine == "" {
		return fmt.Errorf("锁定没有指定机器")
	}
	if !lock.End.After(lock.Start) {
		return fmt.Errorf("锁定的结束时间必须晚于开始时间")
	}
	return nil
}
