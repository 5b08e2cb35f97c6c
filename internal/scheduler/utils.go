package scheduler

import (
	"cmp"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// 没有交期的任务排在所有有交期的任务之后
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

func dueKey(t *domain.ProcessTask) time.Time {
	if t.Order.DueDate.IsZero() {
		return farFuture
	}
	return t.Order.DueDate
}

func ceilDiv(qty, by int) int {
	if by <= 1 {
		return qty
	}
	return (qty + by - 1) / by
}

// compareUrgentFirst 紧急任务排在前面
func compareUrgentFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// compareTasks 是组内任务的全序：优先级、紧急、交期、数量降序，最后用工单号和工序打破平局
func compareTasks(a, b *domain.ProcessTask) int {
	return cmp.Or(
		cmp.Compare(a.ManualPriority, b.ManualPriority),
		compareUrgentFirst(a.Urgent, b.Urgent),
		dueKey(a).Compare(dueKey(b)),
		cmp.Compare(b.Quantity, a.Quantity),
		compareIdentity(a, b),
	)
}

func compareIdentity(a, b *domain.ProcessTask) int {
	return cmp.Or(
		cmp.Compare(a.Order.ID, b.Order.ID),
		cmp.Compare(a.Seq, b.Seq),
		cmp.Compare(a.Process, b.Process),
	)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
