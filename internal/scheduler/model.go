package scheduler

import (
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// 排产参数
type Parameters struct {
	HorizonStart       time.Time     // 排产起始时刻
	HighVolumeQuantity int           // 数量超过该值时优先使用自动模切机
	HighCavityCount    int           // 刀模穴数不少于该值时优先使用自动模切机
	ColorClusterWindow time.Duration // 柔印同色聚类的交期窗口
	SoftLockPriority   int           // 软锁定任务在没有人工优先级时使用的优先级
}

func DefaultParameters(horizonStart time.Time) *Parameters {
	return &Parameters{
		HorizonStart:       horizonStart,
		HighVolumeQuantity: 3000,
		HighCavityCount:    4,
		ColorClusterWindow: 24 * time.Hour,
		SoftLockPriority:   1000,
	}
}

// State 是一次排产过程中唯一可变的状态，只由派工循环读写
type State struct {
	agendas map[string]*calendar.Agenda
	queues  map[string][]*domain.ProcessTask
	stepEnd map[domain.TaskKey]time.Time
	lastJob map[string]*domain.ProcessTask
	stalled map[string]bool
	names   []string
}

func newState(cal *calendar.Calendar, machines []*domain.Machine, start time.Time) *State {
	st := &State{
		agendas: make(map[string]*calendar.Agenda, len(machines)),
		queues:  make(map[string][]*domain.ProcessTask, len(machines)),
		stepEnd: make(map[domain.TaskKey]time.Time),
		lastJob: make(map[string]*domain.ProcessTask, len(machines)),
		stalled: make(map[string]bool),
	}
	for _, m := range machines {
		st.agendas[m.Name] = cal.NewAgenda(m.Name, start)
		st.names = append(st.names, m.Name)
	}
	slices.Sort(st.names)
	return st
}

// 不可排产与排除的原因
const (
	ReasonNoMachine           = "没有可用的机器"
	ReasonPredecessorBlocked  = "前道工序无法排产"
	ReasonMissingPlate        = "缺少印版到货日期"
	ReasonMissingDie          = "缺少刀模到货日期"
	ReasonMissingMaterial     = "缺少原材料到货日期"
	ReasonDeadlock            = "派工无法推进"
	ReasonBlacklisted         = "工单已加入黑名单"
	ReasonOutsourced          = "工序已外协"
	ReasonSkipped             = "工序已跳过"
	ReasonDeleted             = "工序已删除"
	ReasonNoPendingSteps      = "没有待处理工序"
	ReasonAllStepsUnavailable = "所有工序均被排除或无法排产"
)
