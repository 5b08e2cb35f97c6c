package domain

import "time"

type SetupKind string

const (
	SetupBase    SetupKind = "base"
	SetupReduced SetupKind = "reduced"
)

type EntryFlag string

const (
	FlagLocked              EntryFlag = "locked"
	FlagSoftLocked          EntryFlag = "soft_locked"
	FlagGapFilled           EntryFlag = "gap_filled"
	FlagZeroDuration        EntryFlag = "zero_duration" // 未配置产能，需要人工修正
	FlagConflictingOverride EntryFlag = "conflicting_override"
)

type ScheduleEntry struct {
	OrderID      string      `json:"orderID"`
	Process      Process     `json:"process"`
	Seq          int         `json:"seq"`
	Machine      string      `json:"machine"`
	SetupKind    SetupKind   `json:"setupKind"`
	SetupMinutes float64     `json:"setupMinutes"`
	RunHours     float64     `json:"runHours"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	SetupReason  string      `json:"setupReason"`
	Intervals    []Interval  `json:"intervals"`
	Flags        []EntryFlag `json:"flags"`
}

func (e *ScheduleEntry) HasFlag(f EntryFlag) bool {
	for _, ef := range e.Flags {
		if ef == f {
			return true
		}
	}
	return false
}

// Unscheduled 记录无法排产的工序及原因
type Unscheduled struct {
	OrderID string  `json:"orderID"`
	Process Process `json:"process"`
	Reason  string  `json:"reason"`
}

// Excluded 记录被人工排除（外协、跳过、删除、黑名单）的工序
type Excluded struct {
	OrderID string  `json:"orderID"`
	Process Process `json:"process"`
	Reason  string  `json:"reason"`
}

// IdleGap 是机器等待前道工序完成时的空闲时间
type IdleGap struct {
	Machine string    `json:"machine"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	OrderID string    `json:"orderID"`
}

type OrderRollup struct {
	OrderID       string    `json:"orderID"`
	DueDate       time.Time `json:"dueDate"`
	Completion    time.Time `json:"completion"`
	LatenessHours float64   `json:"latenessHours"`
	AtRisk        bool      `json:"atRisk"`
}

type UnplannedOrder struct {
	OrderID string `json:"orderID"`
	Reason  string `json:"reason"`
}

type MachineDayLoad struct {
	Machine        string    `json:"machine"`
	Date           time.Time `json:"date"`
	AssignedHours  float64   `json:"assignedHours"`
	AvailableHours float64   `json:"availableHours"`
}

type Plan struct {
	HorizonStart time.Time        `json:"horizonStart"`
	Entries      []ScheduleEntry  `json:"entries"`
	Unscheduled  []Unscheduled    `json:"unscheduled"`
	Excluded     []Excluded       `json:"excluded"`
	Gaps         []IdleGap        `json:"gaps"`
	Orders       []OrderRollup    `json:"orders"`
	Unplanned    []UnplannedOrder `json:"unplanned"`
	Load         []MachineDayLoad `json:"load"`
	Warnings     []string         `json:"warnings"`
}

func (p *Plan) AtRiskOrders() []OrderRollup {
	var res []OrderRollup
	for _, o := range p.Orders {
		if o.AtRisk {
			res = append(res, o)
		}
	}
	return res
}

// Locks 返回确认计划后需要写入的锁定：firstDay 当天开始的条目为严格锁定，次日开始的为软锁定。
// firstDay 必须是车间时区的零点；0 时长的条目不产生锁定
func (p *Plan) Locks(firstDay time.Time) []LockRecord {
	nextDay := firstDay.AddDate(0, 0, 1)
	dayAfter := firstDay.AddDate(0, 0, 2)

	var res []LockRecord
	for _, e := range p.Entries {
		if !e.End.After(e.Start) {
			continue
		}
		rec := LockRecord{
			OrderID: e.OrderID,
			Process: e.Process,
			Lock:    Lock{Machine: e.Machine, Start: e.Start, End: e.End},
		}
		switch {
		case e.Start.Before(firstDay):
			continue
		case e.Start.Before(nextDay):
			rec.Kind, rec.Date = LockStrict, firstDay
		case e.Start.Before(dayAfter):
			rec.Kind, rec.Date = LockSoft, nextDay
		default:
			continue
		}
		res = append(res, rec)
	}
	return res
}

// ScheduleRun 是一次已确认并持久化的排产结果
type ScheduleRun struct {
	ID          string    `json:"id"`
	Plan        *Plan     `json:"plan"`
	CommittedBy string    `json:"committedBy"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}
