package scheduler

import (
	"cmp"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/utils"
)

// dispatcher 持有一次派工的全部可变状态
type dispatcher struct {
	*State
	s       *Scheduler
	m       *merged
	entries []domain.ScheduleEntry
	gaps    []domain.IdleGap
}

func (s *Scheduler) newDispatcher(m *merged) *dispatcher {
	return &dispatcher{
		State: newState(s.calendar, s.plant.Machines, s.parameters.HorizonStart),
		s:     s,
		m:     m,
	}
}

// placeStrictLocks 原样放置严格锁定的任务。与同一机器上一个锁定重叠或时间非法的锁定会被丢弃，其任务回到普通任务池
func (d *dispatcher) placeStrictLocks() []*domain.ProcessTask {
	locked := slices.Clone(d.m.strict)
	slices.SortFunc(locked, func(a, b lockedTask) int {
		return cmp.Or(
			cmp.Compare(a.task.Machine.Name, b.task.Machine.Name),
			a.lock.Start.Compare(b.lock.Start),
			compareIdentity(a.task, b.task),
		)
	})

	var rejected []*domain.ProcessTask
	lastEnd := make(map[string]time.Time)
	prevLock := make(map[string]*domain.ProcessTask)
	for _, lt := range locked {
		t, lock := lt.task, lt.lock
		name := t.Machine.Name
		key := t.Key()

		if err := utils.ValidateLock(&lock); err != nil {
			d.s.warn(d.m, "工单 %s 工序 %s 的严格锁定非法（%v），按普通任务重新排产", key.OrderID, key.Process, err)
			rejected = append(rejected, t)
			continue
		}
		if prev, ok := lastEnd[name]; ok && lock.Start.Before(prev) {
			d.s.warn(d.m, "工单 %s 工序 %s 的严格锁定与机器 %s 上的前一个锁定重叠，按普通任务重新排产", key.OrderID, key.Process, name)
			rejected = append(rejected, t)
			continue
		}

		kind, reason := ClassifySetup(prevLock[name], t)
		setupMin, runHours, _ := Duration(t, t.Machine, kind)
		entry := domain.ScheduleEntry{
			OrderID:      key.OrderID,
			Process:      t.Process,
			Seq:          t.Seq,
			Machine:      name,
			SetupKind:    kind,
			SetupMinutes: setupMin,
			RunHours:     runHours,
			Start:        lock.Start,
			End:          lock.End,
			SetupReason:  reason,
			Intervals:    []domain.Interval{{Start: lock.Start, End: lock.End}},
			Flags:        []domain.EntryFlag{domain.FlagLocked},
		}
		if t.ConflictingOverride {
			entry.Flags = append(entry.Flags, domain.FlagConflictingOverride)
		}
		d.entries = append(d.entries, entry)

		// 只占用锁定区间本身，锁定之前的空闲时间仍可派工
		lastEnd[name] = lock.End
		d.agendas[name].Block(domain.Interval{Start: lock.Start, End: lock.End})
		d.stepEnd[key] = lock.End
		prevLock[name] = t
	}

	return rejected
}

// enqueue 按机器类别构建队列，再按任务分配到的机器拆分
func (d *dispatcher) enqueue(tasks []*domain.ProcessTask) {
	byClass := make(map[QueueClass][]*domain.ProcessTask)
	for _, t := range tasks {
		class := ClassOf(t.Machine)
		byClass[class] = append(byClass[class], t)
	}

	for _, class := range []QueueClass{ClassFlexo, ClassOffset, ClassDie, ClassBobbin, ClassGeneral} {
		for _, t := range BuildQueue(class, byClass[class], d.s.parameters) {
			d.queues[t.Machine.Name] = append(d.queues[t.Machine.Name], t)
		}
	}
}

// readyAt 返回任务最早可以开工的时刻；前道工序尚未排入时返回 false
func (d *dispatcher) readyAt(t *domain.ProcessTask) (time.Time, bool) {
	ready := t.EarliestStart
	if t.Prev != nil {
		end, ok := d.stepEnd[t.Prev.Key()]
		if !ok {
			return time.Time{}, false
		}
		if end.After(ready) {
			ready = end
		}
	}
	return ready, true
}

func (d *dispatcher) runnableAt(t *domain.ProcessTask, at time.Time) bool {
	ready, ok := d.readyAt(t)
	return ok && !ready.After(at)
}

// hoursFor 返回任务在机器当前状态下需要的总工时（换型 + 运行）
func (d *dispatcher) hoursFor(name string, t *domain.ProcessTask) float64 {
	kind, _ := ClassifySetup(d.lastJob[name], t)
	setupMin, runHours, _ := Duration(t, t.Machine, kind)
	return setupMin/60 + runHours
}

// pickMachine 选择游标最早、队列非空且没有停滞的机器，游标相同时按名称
func (d *dispatcher) pickMachine() (string, bool) {
	var (
		best   string
		cursor time.Time
		found  bool
	)
	for _, name := range d.names {
		if d.stalled[name] || len(d.queues[name]) == 0 {
			continue
		}
		c := d.agendas[name].Cursor()
		if !found || c.Before(cursor) {
			best, cursor, found = name, c, true
		}
	}
	return best, found
}

func (d *dispatcher) run() {
	for {
		name, ok := d.pickMachine()
		if !ok {
			if !d.forceStalled() {
				break
			}
			continue
		}
		d.step(name)
	}
}

// step 在一台机器上推进一步：队首可开工则直接派工，否则尝试插空，再否则等待或标记停滞
func (d *dispatcher) step(name string) {
	queue := d.queues[name]
	ag := d.agendas[name]
	cursor := ag.Cursor()
	head := queue[0]

	if d.runnableAt(head, cursor) {
		d.dispatch(name, 0, false)
		return
	}

	headReady, known := d.readyAt(head)
	for i := 1; i < len(queue); i++ {
		t := queue[i]
		if !d.runnableAt(t, cursor) {
			continue
		}
		if known && ag.Peek(d.hoursFor(name, t)).After(headReady) {
			continue
		}
		d.dispatch(name, i, true)
		return
	}

	if !known {
		d.stalled[name] = true
		return
	}

	d.waitUntil(name, headReady, head)
	d.dispatch(name, 0, false)
}

// waitUntil 把游标推进到 ready 并记录机器的空闲时间。夜间、非工作日、午休、停机和锁定区间不计入空闲
func (d *dispatcher) waitUntil(name string, ready time.Time, t *domain.ProcessTask) {
	ag := d.agendas[name]
	if !ready.After(ag.Cursor()) {
		return
	}
	for _, span := range ag.Spans(ready) {
		d.gaps = append(d.gaps, domain.IdleGap{Machine: name, Start: span.Start, End: span.End, OrderID: t.Order.ID})
	}
	ag.AdvanceTo(ready)
}

// forceStalled 在所有机器都停滞时，选择游标最早且存在已知开工时刻任务的机器，派出其中最早可开工的任务。
// 找不到这样的任务时剩余任务全部记为无法排产
func (d *dispatcher) forceStalled() bool {
	var (
		best      string
		bestIdx   int
		bestReady time.Time
		found     bool
	)
	for _, name := range d.names {
		queue := d.queues[name]
		if len(queue) == 0 {
			continue
		}
		idx, ready, ok := d.earliestReady(queue)
		if !ok {
			continue
		}
		if !found || d.agendas[name].Cursor().Before(d.agendas[best].Cursor()) {
			best, bestIdx, bestReady, found = name, idx, ready, true
		}
	}

	if !found {
		for _, name := range d.names {
			for _, t := range d.queues[name] {
				d.m.unscheduled = append(d.m.unscheduled, domain.Unscheduled{OrderID: t.Order.ID, Process: t.Process, Reason: ReasonDeadlock})
			}
			d.queues[name] = nil
		}
		return false
	}

	t := d.queues[best][bestIdx]
	d.waitUntil(best, bestReady, t)
	d.dispatch(best, bestIdx, bestIdx > 0)
	return true
}

func (d *dispatcher) earliestReady(queue []*domain.ProcessTask) (int, time.Time, bool) {
	var (
		idx   int
		ready time.Time
		found bool
	)
	for i, t := range queue {
		r, ok := d.readyAt(t)
		if ok && (!found || r.Before(ready)) {
			idx, ready, found = i, r, true
		}
	}
	return idx, ready, found
}

// dispatch 将队列中第 idx 个任务排到机器上
func (d *dispatcher) dispatch(name string, idx int, gapFilled bool) {
	t := d.queues[name][idx]
	d.queues[name] = slices.Delete(d.queues[name], idx, idx+1)

	ag := d.agendas[name]
	kind, reason := ClassifySetup(d.lastJob[name], t)
	setupMin, runHours, ok := Duration(t, t.Machine, kind)

	var intervals []domain.Interval
	if ok {
		intervals = ag.Reserve(setupMin/60 + runHours)
	}

	entry := domain.ScheduleEntry{
		OrderID:      t.Order.ID,
		Process:      t.Process,
		Seq:          t.Seq,
		Machine:      name,
		SetupKind:    kind,
		SetupMinutes: setupMin,
		RunHours:     runHours,
		SetupReason:  reason,
		Intervals:    intervals,
	}
	if len(intervals) == 0 {
		entry.Start, entry.End = ag.Cursor(), ag.Cursor()
		entry.Flags = append(entry.Flags, domain.FlagZeroDuration)
		d.s.logger.Warn("任务时长为 0，需要人工修正", "orderID", t.Order.ID, "process", t.Process, "machine", name)
	} else {
		entry.Start, entry.End = intervals[0].Start, intervals[len(intervals)-1].End
	}
	if t.SoftLocked {
		entry.Flags = append(entry.Flags, domain.FlagSoftLocked)
	}
	if gapFilled {
		entry.Flags = append(entry.Flags, domain.FlagGapFilled)
	}
	if t.ConflictingOverride {
		entry.Flags = append(entry.Flags, domain.FlagConflictingOverride)
	}
	d.entries = append(d.entries, entry)

	d.stepEnd[t.Key()] = entry.End
	d.lastJob[name] = t
	clear(d.stalled)
}
