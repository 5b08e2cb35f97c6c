package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/utils"
)

var (
	ErrNoMachineForProcess = errors.New("工序没有可用的机器")
	ErrInvalidParameters   = errors.New("排产参数不合法")
	ErrInvalidPlan         = errors.New("排产结果校验失败")
)

type Scheduler struct {
	parameters *Parameters
	plant      *domain.Plant
	orders     []*domain.WorkOrder // 按工单号排序，保证结果可复现
	orderIndex map[string]*domain.WorkOrder
	duplicates []string
	overrides  *domain.Overrides
	calendar   *calendar.Calendar
	selector   *Selector
	expander   *Expander
	logger     *slog.Logger
}

func New(parameters *Parameters, plant *domain.Plant, orders []*domain.WorkOrder, overrides *domain.Overrides) (*Scheduler, error) {
	if err := validateParameters(parameters); err != nil {
		return nil, err
	}
	if plant == nil || len(plant.Machines) == 0 {
		return nil, fmt.Errorf("%w: 没有配置任何机器", ErrInvalidParameters)
	}
	for _, p := range plant.ProcessOrder {
		if len(plant.MachinesFor(p)) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMachineForProcess, p)
		}
	}
	if overrides == nil {
		overrides = domain.NewOverrides()
	}

	s := &Scheduler{
		parameters: parameters,
		plant:      plant,
		orders:     make([]*domain.WorkOrder, 0, len(orders)),
		orderIndex: make(map[string]*domain.WorkOrder, len(orders)),
		overrides:  overrides,
		calendar:   calendar.New(plant.Calendar),
		selector:   NewSelector(plant, parameters),
		expander:   NewExpander(plant),
		logger:     slog.Default(),
	}

	for _, o := range orders {
		if o == nil {
			continue
		}
		if _, exists := s.orderIndex[o.ID]; exists {
			s.duplicates = append(s.duplicates, o.ID)
			continue
		}
		s.orderIndex[o.ID] = o
		s.orders = append(s.orders, o)
	}
	slices.SortFunc(s.orders, func(a, b *domain.WorkOrder) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return s, nil
}

func validateParameters(p *Parameters) error {
	switch {
	case p == nil:
		return fmt.Errorf("%w: 参数为空", ErrInvalidParameters)
	case p.HorizonStart.IsZero():
		return fmt.Errorf("%w: 没有指定排产起始时刻", ErrInvalidParameters)
	case p.HighVolumeQuantity < 0, p.HighCavityCount < 0:
		return fmt.Errorf("%w: 自动模切阈值不能为负数", ErrInvalidParameters)
	case p.ColorClusterWindow < 0:
		return fmt.Errorf("%w: 同色聚类窗口不能为负数", ErrInvalidParameters)
	}
	return nil
}

// WithLogger 替换调度器使用的日志器
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Schedule 生成一份完整的排产计划。同样的输入总是得到同样的输出
func (s *Scheduler) Schedule() (*domain.Plan, error) {
	m := &merged{}
	for _, id := range s.duplicates {
		s.warn(m, "工单 %s 重复出现，只保留第一条", id)
	}

	// 展开工单
	reasons := make(map[string]string)
	tasksByOrder := make(map[string][]*domain.ProcessTask, len(s.orders))
	for _, order := range s.orders {
		seq := s.expander.Sequence(order)
		if s.overrides.Blacklist[order.ID] {
			for _, p := range seq {
				m.excluded = append(m.excluded, domain.Excluded{OrderID: order.ID, Process: p, Reason: ReasonBlacklisted})
			}
			reasons[order.ID] = ReasonBlacklisted
			continue
		}
		if len(seq) == 0 {
			reasons[order.ID] = ReasonNoPendingSteps
			continue
		}

		// 外协、跳过和删除的工序先从工序链中移除，不参与输入检查
		skip := make(map[domain.Process]bool)
		for _, p := range seq {
			if reason := excludeReason(s.overrides, domain.TaskKey{OrderID: order.ID, Process: p}); reason != "" {
				m.excluded = append(m.excluded, domain.Excluded{OrderID: order.ID, Process: p, Reason: reason})
				skip[p] = true
			}
		}

		tasks, blocked := s.expander.Expand(order, skip)
		tasksByOrder[order.ID] = tasks
		m.unscheduled = append(m.unscheduled, blocked...)
	}

	// 合并人工覆盖并选择机器
	s.mergeOverrides(m, tasksByOrder)

	// 派工
	d := s.newDispatcher(m)
	rejected := d.placeStrictLocks()
	d.enqueue(append(m.tasks, rejected...))
	d.run()

	entries := d.entries
	sortEntries(entries)
	slices.SortFunc(d.gaps, func(a, b domain.IdleGap) int {
		return cmp.Or(cmp.Compare(a.Machine, b.Machine), a.Start.Compare(b.Start))
	})

	rollups, unplanned := s.rollupOrders(entries, reasons)
	plan := &domain.Plan{
		HorizonStart: s.parameters.HorizonStart,
		Entries:      entries,
		Unscheduled:  m.unscheduled,
		Excluded:     m.excluded,
		Gaps:         d.gaps,
		Orders:       rollups,
		Unplanned:    unplanned,
		Load:         s.loadSummary(entries),
		Warnings:     m.warnings,
	}

	// 检查结果是否满足约束条件
	if err := utils.ValidateNoDoubleBooking(plan.Entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := utils.ValidateOrderSequencing(plan.Entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	s.logger.Info("排产完成",
		"entries", len(plan.Entries),
		"unscheduled", len(plan.Unscheduled),
		"excluded", len(plan.Excluded),
		"atRisk", len(plan.AtRiskOrders()),
		"warnings", len(plan.Warnings),
	)

	return plan, nil
}
