package domain

import (
	"math"
	"time"
)

// NoPriority 表示没有人工优先级，排在所有人工优先级之后
const NoPriority = math.MaxInt32

// TaskKey 用于按 (工单, 工序) 索引覆盖项和锁定项
type TaskKey struct {
	OrderID string  `json:"orderID"`
	Process Process `json:"process"`
}

// OrderMachineKey 用于按 (工单, 机器) 索引人工优先级
type OrderMachineKey struct {
	OrderID string `json:"orderID"`
	Machine string `json:"machine"`
}

type ProcessTask struct {
	Order          *WorkOrder
	Process        Process
	Seq            int
	Quantity       int
	GroupKey       string
	Machine        *Machine
	ManualPriority int
	Urgent         bool
	EarliestStart  time.Time
	Prev           *ProcessTask

	SoftLocked          bool
	ManualMachine       bool
	ConflictingOverride bool
}

func (t *ProcessTask) Key() TaskKey {
	return TaskKey{OrderID: t.Order.ID, Process: t.Process}
}

func (t *ProcessTask) DueDate() time.Time {
	return t.Order.DueDate
}
