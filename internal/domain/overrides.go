package domain

import "time"

type LockKind string

const (
	LockStrict LockKind = "strict" // 今天的计划，必须原样保留
	LockSoft   LockKind = "soft"   // 明天的计划，优先保留但可被紧急工单挤占
)

type Lock struct {
	Machine string    `json:"machine"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Overrides 在每次排产开始时读取，调度器只读不写
type Overrides struct {
	StrictLocks       map[TaskKey]Lock        `json:"-"`
	SoftLocks         map[TaskKey]Lock        `json:"-"`
	PriorityByProcess map[TaskKey]int         `json:"-"`
	PriorityByMachine map[OrderMachineKey]int `json:"-"`
	Machines          map[TaskKey]string      `json:"-"`
	Outsourced        map[TaskKey]bool        `json:"-"`
	Skipped           map[TaskKey]bool        `json:"-"`
	Deleted           map[TaskKey]bool        `json:"-"`
	Blacklist         map[string]bool         `json:"-"`
}

func NewOverrides() *Overrides {
	return &Overrides{
		StrictLocks:       make(map[TaskKey]Lock),
		SoftLocks:         make(map[TaskKey]Lock),
		PriorityByProcess: make(map[TaskKey]int),
		PriorityByMachine: make(map[OrderMachineKey]int),
		Machines:          make(map[TaskKey]string),
		Outsourced:        make(map[TaskKey]bool),
		Skipped:           make(map[TaskKey]bool),
		Deleted:           make(map[TaskKey]bool),
		Blacklist:         make(map[string]bool),
	}
}

// TaskOverride 是人工覆盖项在存储和接口中的扁平形式
type TaskOverride struct {
	OrderID    string  `json:"orderID"`
	Process    Process `json:"process"`
	Priority   *int    `json:"priority"`
	Machine    *string `json:"machine"`
	Outsourced bool    `json:"outsourced"`
	Skipped    bool    `json:"skipped"`
	Deleted    bool    `json:"deleted"`
	Version    int32   `json:"-"`
}

type MachinePriority struct {
	OrderID  string `json:"orderID"`
	Machine  string `json:"machine"`
	Priority int    `json:"priority"`
}

// LockRecord 是持久化的锁定，Date 是锁定所在的工作日
type LockRecord struct {
	OrderID string    `json:"orderID"`
	Process Process   `json:"process"`
	Kind    LockKind  `json:"kind"`
	Date    time.Time `json:"date"`
	Lock
}

// AddLock 把持久化的锁定放入对应的锁定表
func (o *Overrides) AddLock(rec LockRecord) {
	key := TaskKey{OrderID: rec.OrderID, Process: rec.Process}
	switch rec.Kind {
	case LockStrict:
		o.StrictLocks[key] = rec.Lock
	case LockSoft:
		o.SoftLocks[key] = rec.Lock
	}
}

// AddTaskOverride 把一条工序级人工覆盖合并进来
func (o *Overrides) AddTaskOverride(t TaskOverride) {
	key := TaskKey{OrderID: t.OrderID, Process: t.Process}
	if t.Priority != nil {
		o.PriorityByProcess[key] = *t.Priority
	}
	if t.Machine != nil && *t.Machine != "" {
		o.Machines[key] = *t.Machine
	}
	if t.Outsourced {
		o.Outsourced[key] = true
	}
	if t.Skipped {
		o.Skipped[key] = true
	}
	if t.Deleted {
		o.Deleted[key] = true
	}
}
