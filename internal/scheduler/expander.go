package scheduler

import (
	"fmt"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

type Expander struct {
	plant *domain.Plant
}

func NewExpander(plant *domain.Plant) *Expander {
	return &Expander{plant: plant}
}

// Sequence 返回工单剩余的工序顺序。自定义顺序原样使用，先模切后印刷只作用于默认顺序
func (e *Expander) Sequence(order *domain.WorkOrder) []domain.Process {
	var seq []domain.Process
	if len(order.CustomSequence) > 0 {
		seq = slices.Clone(order.CustomSequence)
	} else {
		for _, p := range e.plant.ProcessOrder {
			if order.Pending[p] {
				seq = append(seq, p)
			}
		}
		if order.DieBeforePrint {
			seq = moveDieBeforePrint(seq)
		}
	}
	return seq
}

func moveDieBeforePrint(seq []domain.Process) []domain.Process {
	die := slices.Index(seq, domain.ProcessDieCut)
	pr := slices.Index(seq, domain.ProcessPrint)
	if die < 0 || pr < 0 || die < pr {
		return seq
	}
	seq = slices.Delete(seq, die, die+1)
	return slices.Insert(seq, pr, domain.ProcessDieCut)
}

// Expand 将工单展开为按顺序排列的待排工序。skip 中的工序（外协、跳过、删除）不展开，也不会阻塞后续工序；
// 缺少物理输入到货日期的工序及其后续工序不参与排产
func (e *Expander) Expand(order *domain.WorkOrder, skip map[domain.Process]bool) ([]*domain.ProcessTask, []domain.Unscheduled) {
	var (
		tasks   []*domain.ProcessTask
		blocked []domain.Unscheduled
		prev    *domain.ProcessTask
		reason  string
		first   = true
	)

	for i, p := range e.Sequence(order) {
		if skip[p] {
			continue
		}
		if reason == "" {
			var earliest time.Time
			earliest, reason = e.inputReadiness(order, p, first)
			if reason == "" {
				t := &domain.ProcessTask{
					Order:          order,
					Process:        p,
					Seq:            i,
					Quantity:       quantityFor(order, p),
					GroupKey:       groupKey(order, p),
					ManualPriority: domain.NoPriority,
					Urgent:         order.Urgent,
					EarliestStart:  earliest,
					Prev:           prev,
				}
				tasks = append(tasks, t)
				prev = t
				first = false
				continue
			}
		}
		first = false
		blocked = append(blocked, domain.Unscheduled{OrderID: order.ID, Process: p, Reason: reason})
	}

	return tasks, blocked
}

// inputReadiness 返回工序最早可开工时刻；所需物理输入没有到货日期时返回原因。原材料只约束第一道在厂内完成的工序
func (e *Expander) inputReadiness(order *domain.WorkOrder, p domain.Process, first bool) (time.Time, string) {
	var earliest time.Time
	check := func(needed bool, arrival *time.Time, reason string) string {
		if !needed {
			return ""
		}
		if arrival == nil {
			return reason
		}
		if arrival.After(earliest) {
			earliest = *arrival
		}
		return ""
	}

	if first {
		if r := check(order.MaterialNeeded, order.MaterialArrival, ReasonMissingMaterial); r != "" {
			return time.Time{}, r
		}
	}
	switch p {
	case domain.ProcessPrint:
		if r := check(order.PlateNeeded, order.PlateArrival, ReasonMissingPlate); r != "" {
			return time.Time{}, r
		}
	case domain.ProcessDieCut:
		if r := check(order.DieNeeded, order.DieArrival, ReasonMissingDie); r != "" {
			return time.Time{}, r
		}
	}
	return earliest, ""
}

// quantityFor 印刷和上光按拼版数折算，模切按刀模穴数折算
func quantityFor(order *domain.WorkOrder, p domain.Process) int {
	switch p {
	case domain.ProcessPrint, domain.ProcessVarnish:
		return ceilDiv(order.Quantity, order.UpsPerSheet)
	case domain.ProcessDieCut:
		return ceilDiv(order.Quantity, order.Cavities)
	}
	return order.Quantity
}

func groupKey(order *domain.WorkOrder, p domain.Process) string {
	switch p {
	case domain.ProcessDieCut:
		if order.DieCode == "" {
			return "#" + order.ID
		}
		return order.DieCode
	case domain.ProcessPrint:
		size := domain.NewEnvelope(order.SheetWidth, order.SheetLength)
		return fmt.Sprintf("%s|%s|%gx%g", order.Client, domain.NormalizeColor(order.Color), size.Short, size.Long)
	case domain.ProcessBobbinCut:
		return fmt.Sprintf("%s|%gx%g|%g", order.Material, order.SheetWidth, order.SheetLength, order.Weight)
	case domain.ProcessGlue:
		return order.GlueType + "|" + order.Material
	}
	return order.ID
}
