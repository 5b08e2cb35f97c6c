package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func TestSequence(t *testing.T) {
	e := NewExpander(fullPlant())

	o := newOrder("A", 1000, domain.ProcessGlue, domain.ProcessPrint, domain.ProcessDieCut)
	assert.Equal(t, []domain.Process{domain.ProcessPrint, domain.ProcessDieCut, domain.ProcessGlue}, e.Sequence(o))

	o.DieBeforePrint = true
	assert.Equal(t, []domain.Process{domain.ProcessDieCut, domain.ProcessPrint, domain.ProcessGlue}, e.Sequence(o))

	// 自定义顺序原样使用，不再按待处理标记过滤
	custom := newOrder("B", 1000)
	custom.CustomSequence = []domain.Process{domain.ProcessGlue, domain.ProcessWindow}
	assert.Equal(t, []domain.Process{domain.ProcessGlue, domain.ProcessWindow}, e.Sequence(custom))

	// 先模切后印刷不改变自定义顺序
	custom.CustomSequence = []domain.Process{domain.ProcessPrint, domain.ProcessDieCut}
	custom.DieBeforePrint = true
	assert.Equal(t, []domain.Process{domain.ProcessPrint, domain.ProcessDieCut}, e.Sequence(custom))
}

func TestExpand(t *testing.T) {
	e := NewExpander(fullPlant())

	o := newOrder("A", 1000, domain.ProcessPrint, domain.ProcessDieCut, domain.ProcessGlue)
	o.UpsPerSheet = 3
	o.Cavities = 4
	o.Urgent = true

	tasks, blocked := e.Expand(o, nil)
	require.Len(t, tasks, 3)
	assert.Empty(t, blocked)

	assert.Equal(t, 334, tasks[0].Quantity)
	assert.Equal(t, 250, tasks[1].Quantity)
	assert.Equal(t, 1000, tasks[2].Quantity)

	assert.Nil(t, tasks[0].Prev)
	assert.Same(t, tasks[0], tasks[1].Prev)
	assert.Same(t, tasks[1], tasks[2].Prev)
	for i, tk := range tasks {
		assert.Equal(t, i, tk.Seq)
		assert.True(t, tk.Urgent)
		assert.Equal(t, domain.NoPriority, tk.ManualPriority)
	}

	// 没有刀模编号的订单各自成组
	assert.Equal(t, "#A", tasks[1].GroupKey)
}

func TestExpandBlocksOnMissingInputs(t *testing.T) {
	e := NewExpander(fullPlant())

	o := newOrder("A", 1000, domain.ProcessPrint, domain.ProcessDieCut, domain.ProcessGlue)
	o.MaterialNeeded = true
	tasks, blocked := e.Expand(o, nil)
	assert.Empty(t, tasks)
	require.Len(t, blocked, 3)
	for _, b := range blocked {
		assert.Equal(t, ReasonMissingMaterial, b.Reason)
	}

	arrival := time.Date(2026, time.October, 20, 8, 0, 0, 0, time.UTC)
	o.MaterialArrival = &arrival
	o.DieNeeded = true
	tasks, blocked = e.Expand(o, nil)
	require.Len(t, tasks, 1)
	assert.Equal(t, arrival, tasks[0].EarliestStart)
	assert.Equal(t, []domain.Unscheduled{
		{OrderID: "A", Process: domain.ProcessDieCut, Reason: ReasonMissingDie},
		{OrderID: "A", Process: domain.ProcessGlue, Reason: ReasonMissingDie},
	}, blocked)
}

func TestExpandSkipsExcludedSteps(t *testing.T) {
	e := NewExpander(fullPlant())

	// 外协的印刷缺少印版日期，不影响厂内的模切
	o := newOrder("A", 1000, domain.ProcessPrint, domain.ProcessDieCut)
	o.PlateNeeded = true
	tasks, blocked := e.Expand(o, map[domain.Process]bool{domain.ProcessPrint: true})
	assert.Empty(t, blocked)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.ProcessDieCut, tasks[0].Process)
	assert.Equal(t, 1, tasks[0].Seq)
	assert.Nil(t, tasks[0].Prev)

	// 第一道工序被排除时，原材料约束落在第一道保留的工序上
	m := newOrder("B", 1000, domain.ProcessPrint, domain.ProcessDieCut)
	m.MaterialNeeded = true
	tasks, blocked = e.Expand(m, map[domain.Process]bool{domain.ProcessPrint: true})
	assert.Empty(t, tasks)
	assert.Equal(t, []domain.Unscheduled{
		{OrderID: "B", Process: domain.ProcessDieCut, Reason: ReasonMissingMaterial},
	}, blocked)

	arrival := time.Date(2026, time.October, 20, 8, 0, 0, 0, time.UTC)
	m.MaterialArrival = &arrival
	tasks, blocked = e.Expand(m, map[domain.Process]bool{domain.ProcessPrint: true})
	assert.Empty(t, blocked)
	require.Len(t, tasks, 1)
	assert.Equal(t, arrival, tasks[0].EarliestStart)
}
