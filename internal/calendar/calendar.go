// Package calendar 实现机器的工作日历和时间预留。
//
// 工作日的工作窗口从 DayStart 开始，持续当天的总工时；午休落在窗口内时窗口相应顺延。
// 周末和节假日只有在批准了加班的情况下才是工作日，此时当天总工时等于加班时长。
package calendar

import (
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// Epsilon 以下的剩余工时视为 0，避免浮点误差导致死循环
const Epsilon = 1e-9

// 连续这么多天都不是工作日时停止搜索
const maxIdleDays = 5 * 366

type overtimeKey struct {
	machine string
	date    string
}

type Calendar struct {
	dayStart    time.Duration
	hoursPerDay float64
	lunchStart  time.Duration
	lunchEnd    time.Duration
	loc         *time.Location
	holidays    map[string]bool
	downtimes   map[string][]domain.Interval
	overtime    map[overtimeKey]float64
}

func New(cfg domain.CalendarConfig) *Calendar {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	c := &Calendar{
		dayStart:    cfg.DayStart,
		hoursPerDay: cfg.HoursPerDay,
		lunchStart:  cfg.LunchStart,
		lunchEnd:    cfg.LunchEnd,
		loc:         loc,
		holidays:    make(map[string]bool),
		downtimes:   make(map[string][]domain.Interval),
		overtime:    make(map[overtimeKey]float64),
	}

	// 节假日和加班是日历日期，按其自身的年月日解释，不做时区转换
	for _, h := range cfg.Holidays {
		c.holidays[dateKey(h)] = true
	}
	for _, d := range cfg.Downtimes {
		if !d.End.After(d.Start) {
			continue
		}
		c.downtimes[d.Machine] = append(c.downtimes[d.Machine], domain.Interval{Start: d.Start, End: d.End})
	}
	for _, o := range cfg.Overtime {
		if o.Hours <= 0 {
			continue
		}
		c.overtime[overtimeKey{machine: o.Machine, date: dateKey(o.Date)}] += o.Hours
	}

	return c
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// midnight 返回 t 所在日期的零点
func (c *Calendar) midnight(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// overtimeHours 优先使用机器专属的加班，其次是全局加班
func (c *Calendar) overtimeHours(machine string, day time.Time) float64 {
	key := dateKey(day)
	if h, ok := c.overtime[overtimeKey{machine: machine, date: key}]; ok {
		return h
	}
	return c.overtime[overtimeKey{date: key}]
}

// DayHours 返回某台机器在某天的总工时（不含午休）
func (c *Calendar) DayHours(machine string, day time.Time) float64 {
	day = c.midnight(day)
	ot := c.overtimeHours(machine, day)

	wd := day.Weekday()
	if wd == time.Saturday || wd == time.Sunday || c.holidays[dateKey(day)] {
		return ot
	}
	return c.hoursPerDay + ot
}

// window 返回当天的工作窗口
func (c *Calendar) window(machine string, day time.Time) (time.Time, time.Time, bool) {
	day = c.midnight(day)
	total := c.DayHours(machine, day)
	if total <= Epsilon {
		return time.Time{}, time.Time{}, false
	}

	start := day.Add(c.dayStart)
	end := start.Add(hoursToDuration(total))
	if lunch, ok := c.lunch(day); ok && lunch.Start.Before(end) && lunch.End.After(start) {
		end = end.Add(lunch.End.Sub(lunch.Start))
	}
	return start, end, true
}

func (c *Calendar) lunch(day time.Time) (domain.Interval, bool) {
	if c.lunchEnd <= c.lunchStart {
		return domain.Interval{}, false
	}
	day = c.midnight(day)
	return domain.Interval{Start: day.Add(c.lunchStart), End: day.Add(c.lunchEnd)}, true
}

// blocks 返回当天的午休以及与当天相交的停机时间
func (c *Calendar) blocks(machine string, day time.Time) []domain.Interval {
	day = c.midnight(day)
	dayEnd := day.AddDate(0, 0, 1)

	var res []domain.Interval
	if lunch, ok := c.lunch(day); ok {
		res = append(res, lunch)
	}
	for _, d := range c.downtimes[machine] {
		if d.Start.Before(dayEnd) && d.End.After(day) {
			res = append(res, d)
		}
	}
	return res
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
