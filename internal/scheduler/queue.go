package scheduler

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

type QueueClass string

const (
	ClassFlexo   QueueClass = "flexo"
	ClassOffset  QueueClass = "offset"
	ClassDie     QueueClass = "die"
	ClassBobbin  QueueClass = "bobbin"
	ClassGeneral QueueClass = "general"
)

// ClassOf 返回机器所属的队列类别，同一类别的任务用同一种策略排序
func ClassOf(m *domain.Machine) QueueClass {
	switch {
	case m.Performs(domain.ProcessPrint) && m.Capabilities.InkTech == domain.InkFlexo:
		return ClassFlexo
	case m.Performs(domain.ProcessPrint) && m.Capabilities.InkTech == domain.InkOffset,
		m.Performs(domain.ProcessVarnish):
		return ClassOffset
	case m.Process == domain.ProcessDieCut:
		return ClassDie
	case m.Process == domain.ProcessBobbinCut:
		return ClassBobbin
	}
	return ClassGeneral
}

// BuildQueue 对同一类别的任务排序。紧急任务整体排在非紧急任务之前，然后在各自的池内按类别策略排序
func BuildQueue(class QueueClass, tasks []*domain.ProcessTask, parameters *Parameters) []*domain.ProcessTask {
	var urgent, normal []*domain.ProcessTask
	for _, t := range tasks {
		if t.Urgent {
			urgent = append(urgent, t)
		} else {
			normal = append(normal, t)
		}
	}

	order := func(pool []*domain.ProcessTask) []*domain.ProcessTask {
		switch class {
		case ClassFlexo:
			return flexoQueue(pool, parameters.ColorClusterWindow)
		case ClassOffset:
			return groupedQueue(pool, offsetGroup)
		case ClassDie, ClassBobbin:
			return groupedQueue(pool, func(t *domain.ProcessTask) (string, int) { return t.GroupKey, 0 })
		}
		return generalQueue(pool)
	}

	return append(order(urgent), order(normal)...)
}

// flexoQueue 先按 (优先级, 交期, 客户, 数量降序) 排序，再做一次同色聚类：
// 每个尚未放置的任务作为锚点，把之后同优先级、同颜色且交期在窗口内的任务拉到它后面。
// 被拉过来的任务不会再成为锚点，因此不会产生传递性的重排。
func flexoQueue(tasks []*domain.ProcessTask, window time.Duration) []*domain.ProcessTask {
	sorted := slices.Clone(tasks)
	slices.SortFunc(sorted, func(a, b *domain.ProcessTask) int {
		return cmp.Or(
			cmp.Compare(a.ManualPriority, b.ManualPriority),
			dueKey(a).Compare(dueKey(b)),
			cmp.Compare(a.Order.Client, b.Order.Client),
			cmp.Compare(b.Quantity, a.Quantity),
			compareIdentity(a, b),
		)
	})

	res := make([]*domain.ProcessTask, 0, len(sorted))
	placed := make([]bool, len(sorted))
	for i, anchor := range sorted {
		if placed[i] {
			continue
		}
		placed[i] = true
		res = append(res, anchor)

		color := domain.NormalizeColor(anchor.Order.Color)
		if color == "" {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			c := sorted[j]
			if placed[j] || c.ManualPriority != anchor.ManualPriority {
				continue
			}
			if domain.NormalizeColor(c.Order.Color) != color {
				continue
			}
			if absDuration(dueKey(c).Sub(dueKey(anchor))) <= window {
				placed[j] = true
				res = append(res, c)
			}
		}
	}
	return res
}

// offsetGroup 胶印先印刷后上光；四色按 (客户, 刀模) 分组，专色按 (客户, 颜色) 分组，上光按客户分组
func offsetGroup(t *domain.ProcessTask) (string, int) {
	o := t.Order
	switch {
	case t.Process == domain.ProcessVarnish:
		return "varnish|" + o.Client, 1
	case t.Process != domain.ProcessPrint:
		return t.GroupKey, 0
	case domain.IsProcessColor(o.Color):
		return strings.Join([]string{"cmyk", o.Client, o.DieCode}, "|"), 0
	}
	return strings.Join([]string{"spot", o.Client, domain.NormalizeColor(o.Color)}, "|"), 0
}

type taskGroup struct {
	key      string
	rank     int
	priority int
	urgent   bool
	due      time.Time
	tasks    []*domain.ProcessTask
}

// groupedQueue 按分组键聚合任务。组按 (最小优先级, 是否含紧急, 最早交期, 阶段, 分组键) 排序，组内按 compareTasks 排序
func groupedQueue(tasks []*domain.ProcessTask, keyOf func(*domain.ProcessTask) (string, int)) []*domain.ProcessTask {
	type groupID struct {
		key  string
		rank int
	}
	index := make(map[groupID]*taskGroup)
	var groups []*taskGroup

	for _, t := range tasks {
		key, rank := keyOf(t)
		g, ok := index[groupID{key, rank}]
		if !ok {
			g = &taskGroup{key: key, rank: rank, priority: t.ManualPriority, due: dueKey(t)}
			index[groupID{key, rank}] = g
			groups = append(groups, g)
		}
		g.tasks = append(g.tasks, t)
		g.priority = min(g.priority, t.ManualPriority)
		g.urgent = g.urgent || t.Urgent
		if d := dueKey(t); d.Before(g.due) {
			g.due = d
		}
	}

	slices.SortFunc(groups, func(a, b *taskGroup) int {
		return cmp.Or(
			cmp.Compare(a.priority, b.priority),
			compareUrgentFirst(a.urgent, b.urgent),
			a.due.Compare(b.due),
			cmp.Compare(a.rank, b.rank),
			cmp.Compare(a.key, b.key),
		)
	})

	res := make([]*domain.ProcessTask, 0, len(tasks))
	for _, g := range groups {
		slices.SortFunc(g.tasks, compareTasks)
		res = append(res, g.tasks...)
	}
	return res
}

func generalQueue(tasks []*domain.ProcessTask) []*domain.ProcessTask {
	sorted := slices.Clone(tasks)
	slices.SortFunc(sorted, func(a, b *domain.ProcessTask) int {
		return cmp.Or(
			cmp.Compare(a.ManualPriority, b.ManualPriority),
			dueKey(a).Compare(dueKey(b)),
			cmp.Compare(a.GroupKey, b.GroupKey),
			cmp.Compare(b.Quantity, a.Quantity),
			compareIdentity(a, b),
		)
	})
	return sorted
}
