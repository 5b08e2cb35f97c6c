package domain

import "time"

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Hours() float64 {
	return i.End.Sub(i.Start).Hours()
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

type Downtime struct {
	Machine string    `json:"machine"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// OvertimeGrant 中 Machine 为空表示对所有机器生效
type OvertimeGrant struct {
	Machine string    `json:"machine"`
	Date    time.Time `json:"date"`
	Hours   float64   `json:"hours"`
}

type CalendarConfig struct {
	DayStart    time.Duration   `json:"dayStart"` // 距零点的偏移
	HoursPerDay float64         `json:"hoursPerDay"`
	LunchStart  time.Duration   `json:"lunchStart"`
	LunchEnd    time.Duration   `json:"lunchEnd"`
	Location    *time.Location  `json:"-"`
	Holidays    []time.Time     `json:"holidays"`
	Downtimes   []Downtime      `json:"downtimes"`
	Overtime    []OvertimeGrant `json:"overtime"`
}
