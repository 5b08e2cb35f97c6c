package calendar

import (
	"math"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// Agenda 是一台机器的时间游标，只会向前移动
type Agenda struct {
	cal      *Calendar
	machine  string
	cursor   time.Time
	reserved []domain.Interval // 已被占用的区间，例如严格锁定的任务
}

func (c *Calendar) NewAgenda(machine string, start time.Time) *Agenda {
	return &Agenda{
		cal:     c,
		machine: machine,
		cursor:  start.In(c.loc),
	}
}

func (a *Agenda) Cursor() time.Time {
	return a.cursor
}

// Clone 复制一份 Agenda，用于在不修改状态的前提下模拟预留
func (a *Agenda) Clone() *Agenda {
	cp := *a
	cp.reserved = slices.Clone(a.reserved)
	return &cp
}

// Block 将区间标记为已占用。预留时与午休和停机一样被跳过，游标不动
func (a *Agenda) Block(iv domain.Interval) {
	if iv.End.After(iv.Start) {
		a.reserved = append(a.reserved, domain.Interval{Start: iv.Start.In(a.cal.loc), End: iv.End.In(a.cal.loc)})
	}
}

// blocks 返回当天日历上的阻塞区间以及与当天相交的已占用区间，按起点排序
func (a *Agenda) blocks(day time.Time) []domain.Interval {
	res := a.cal.blocks(a.machine, day)
	day = a.cal.midnight(day)
	dayEnd := day.AddDate(0, 0, 1)
	for _, b := range a.reserved {
		if b.Start.Before(dayEnd) && b.End.After(day) {
			res = append(res, b)
		}
	}
	slices.SortFunc(res, func(x, y domain.Interval) int {
		return x.Start.Compare(y.Start)
	})
	return res
}

// AdvanceTo 将游标推进到 t，t 早于游标时不做任何事
func (a *Agenda) AdvanceTo(t time.Time) {
	if t.After(a.cursor) {
		a.cursor = t.In(a.cal.loc)
	}
}

// Remaining 返回游标所在工作日剩余的工时
func (a *Agenda) Remaining() float64 {
	cp := a.Clone()
	if !cp.settle() {
		return 0
	}
	_, end, _ := cp.cal.window(cp.machine, cp.cursor)

	total := end.Sub(cp.cursor).Hours()
	from := cp.cursor
	for _, b := range cp.blocks(cp.cursor) {
		s, e := maxTime(b.Start, from), minTime(b.End, end)
		if e.After(s) {
			total -= e.Sub(s).Hours()
			from = e
		}
	}
	return math.Max(total, 0)
}

// settle 将游标移动到最近的可工作时刻：跳过非工作日、工作窗口之外的时间以及午休和停机
func (a *Agenda) settle() bool {
	for i := 0; i < maxIdleDays*4; i++ {
		day := a.cal.midnight(a.cursor)
		start, end, ok := a.cal.window(a.machine, day)
		if !ok {
			a.cursor = day.AddDate(0, 0, 1)
			continue
		}
		if a.cursor.Before(start) {
			a.cursor = start
		}
		if end.Sub(a.cursor).Hours() <= Epsilon {
			a.cursor = day.AddDate(0, 0, 1)
			continue
		}

		blocked := false
		for _, b := range a.blocks(day) {
			if !a.cursor.Before(b.Start) && a.cursor.Before(b.End) {
				// 在停机或午休中，直接跳到其结束时刻，不消耗需求工时
				a.cursor = b.End
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		return true
	}
	return false
}

// nextBlockStart 返回游标之后、limit 之前最早开始的阻塞区间起点
func (a *Agenda) nextBlockStart(limit time.Time) time.Time {
	next := limit
	for _, b := range a.blocks(a.cursor) {
		if b.Start.After(a.cursor) && b.Start.Before(next) {
			next = b.Start
		}
	}
	return next
}

// Reserve 预留 hours 个工时，返回占用的连续工作区间；同时推进游标
func (a *Agenda) Reserve(hours float64) []domain.Interval {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= Epsilon {
		return nil
	}

	var res []domain.Interval
	for hours > Epsilon {
		if !a.settle() {
			break
		}
		_, dayEnd, _ := a.cal.window(a.machine, a.cursor)

		end := a.nextBlockStart(dayEnd)
		if need := a.cursor.Add(hoursToDuration(hours)); need.Before(end) {
			end = need
		}

		consumed := end.Sub(a.cursor).Hours()
		if n := len(res); n > 0 && res[n-1].End.Equal(a.cursor) {
			res[n-1].End = end
		} else {
			res = append(res, domain.Interval{Start: a.cursor, End: end})
		}

		hours -= consumed
		a.cursor = end
	}

	return res
}

// Peek 返回从当前游标开始预留 hours 个工时的结束时刻，不修改游标
func (a *Agenda) Peek(hours float64) time.Time {
	cp := a.Clone()
	intervals := cp.Reserve(hours)
	if len(intervals) == 0 {
		return a.cursor
	}
	return intervals[len(intervals)-1].End
}

// Spans 返回游标到 until 之间的可工作区间，不修改游标
func (a *Agenda) Spans(until time.Time) []domain.Interval {
	cp := a.Clone()
	var res []domain.Interval
	for cp.settle() && cp.cursor.Before(until) {
		_, dayEnd, _ := cp.cal.window(cp.machine, cp.cursor)
		end := cp.nextBlockStart(minTime(dayEnd, until))
		res = append(res, domain.Interval{Start: cp.cursor, End: end})
		cp.cursor = end
	}
	return res
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
