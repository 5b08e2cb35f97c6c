package scheduler

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

type lockedTask struct {
	task *domain.ProcessTask
	lock domain.Lock
}

// merged 是合并锁定和人工覆盖之后的任务池
type merged struct {
	tasks       []*domain.ProcessTask
	strict      []lockedTask
	excluded    []domain.Excluded
	unscheduled []domain.Unscheduled
	warnings    []string
}

func (s *Scheduler) warn(m *merged, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn(msg)
	m.warnings = append(m.warnings, msg)
}

func sortedKeys[V any](m map[domain.TaskKey]V) []domain.TaskKey {
	return slices.SortedFunc(maps.Keys(m), func(a, b domain.TaskKey) int {
		return cmp.Or(cmp.Compare(a.OrderID, b.OrderID), cmp.Compare(a.Process, b.Process))
	})
}

// excludeReason 返回人工排除的原因，没有被排除时返回空字符串
func excludeReason(ov *domain.Overrides, key domain.TaskKey) string {
	switch {
	case ov.Outsourced[key]:
		return ReasonOutsourced
	case ov.Skipped[key]:
		return ReasonSkipped
	case ov.Deleted[key]:
		return ReasonDeleted
	}
	return ""
}

// mergeOverrides 将锁定和人工覆盖合并进任务池，并为每个任务确定机器
func (s *Scheduler) mergeOverrides(m *merged, tasksByOrder map[string][]*domain.ProcessTask) {
	ov := s.overrides

	// 锁定数据引用了不存在的工单时忽略
	for _, locks := range []map[domain.TaskKey]domain.Lock{ov.StrictLocks, ov.SoftLocks} {
		for _, key := range sortedKeys(locks) {
			if _, ok := s.orderIndex[key.OrderID]; !ok {
				s.warn(m, "锁定的工单 %s 不在本次输入中，已忽略", key.OrderID)
			}
		}
	}

	consumed := make(map[domain.TaskKey]bool)
	for _, order := range s.orders {
		var prev *domain.ProcessTask
		broken := false

		for _, t := range tasksByOrder[order.ID] {
			key := t.Key()
			if broken {
				m.unscheduled = append(m.unscheduled, domain.Unscheduled{OrderID: order.ID, Process: t.Process, Reason: ReasonPredecessorBlocked})
				continue
			}

			// 依赖链接到最近的保留工序
			t.Prev = prev
			if p, ok := ov.PriorityByProcess[key]; ok {
				t.ManualPriority = p
			}

			machine, isStrict := s.assignMachine(m, t)
			t.Machine = machine
			if t.Machine == nil {
				m.unscheduled = append(m.unscheduled, domain.Unscheduled{OrderID: order.ID, Process: t.Process, Reason: ReasonNoMachine})
				broken = true
				continue
			}

			if p, ok := ov.PriorityByMachine[domain.OrderMachineKey{OrderID: order.ID, Machine: t.Machine.Name}]; ok {
				t.ManualPriority = p
			}
			if t.SoftLocked && t.ManualPriority == domain.NoPriority {
				t.ManualPriority = s.parameters.SoftLockPriority
			}

			if isStrict {
				m.strict = append(m.strict, lockedTask{task: t, lock: ov.StrictLocks[key]})
				consumed[key] = true
			} else {
				m.tasks = append(m.tasks, t)
			}
			prev = t
		}
	}

	for _, key := range sortedKeys(ov.StrictLocks) {
		if _, ok := s.orderIndex[key.OrderID]; ok && !consumed[key] {
			s.warn(m, "工单 %s 工序 %s 的严格锁定没有对应的待排任务，已忽略", key.OrderID, key.Process)
		}
	}
}

// assignMachine 依次使用严格锁定、人工指定、软锁定的机器，最后才自动选择
func (s *Scheduler) assignMachine(m *merged, t *domain.ProcessTask) (machine *domain.Machine, strict bool) {
	key := t.Key()

	pinned := func(name, source string) *domain.Machine {
		machine := s.plant.Machine(name)
		if machine == nil {
			s.warn(m, "工单 %s 工序 %s 的%s机器 %s 不存在，已忽略", key.OrderID, key.Process, source, name)
			return nil
		}
		// 人工意图优先于自动校验，但需要标记出来供复核
		if err := s.selector.Validate(machine, t.Process, t.Order); err != nil {
			s.warn(m, "工单 %s 工序 %s 的%s与约束冲突: %v", key.OrderID, key.Process, source, err)
			t.ConflictingOverride = true
		}
		return machine
	}

	if lock, ok := s.overrides.StrictLocks[key]; ok {
		if machine := pinned(lock.Machine, "严格锁定"); machine != nil {
			return machine, true
		}
	}
	if name, ok := s.overrides.Machines[key]; ok {
		if machine := pinned(name, "人工指定"); machine != nil {
			t.ManualMachine = true
			return machine, false
		}
	}
	if soft, ok := s.overrides.SoftLocks[key]; ok {
		if machine := pinned(soft.Machine, "软锁定"); machine != nil {
			t.SoftLocked = true
			return machine, false
		}
	}

	return s.selector.Select(t.Process, t.Order), false
}
