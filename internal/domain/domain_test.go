package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeColor(t *testing.T) {
	assert.Equal(t, "485+BLACK+PANTONE", NormalizeColor("Pantone 485 / black"))
	assert.Equal(t, NormalizeColor("C+M+Y+K"), NormalizeColor("k, y, m, c"))
	assert.Equal(t, "", NormalizeColor("  "))

	assert.True(t, IsProcessColor("CMYK"))
	assert.True(t, IsProcessColor("4c"))
	assert.True(t, IsProcessColor("K+Y+M+C"))
	assert.False(t, IsProcessColor("PANTONE 485"))
}

func TestMachineFitsIsRotationInvariant(t *testing.T) {
	m := &Machine{Capabilities: Capabilities{
		MinSheet: &Envelope{Short: 30, Long: 40},
		MaxSheet: &Envelope{Short: 80, Long: 105},
	}}

	assert.True(t, m.Fits(80, 105))
	assert.True(t, m.Fits(105, 80))
	assert.False(t, m.Fits(90, 110))
	assert.False(t, m.Fits(20, 50))
}

func TestPlanLocks(t *testing.T) {
	day := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	at := func(d, h int) time.Time { return day.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour) }

	plan := &Plan{Entries: []ScheduleEntry{
		{OrderID: "A", Process: ProcessPrint, Machine: "P1", Start: at(0, 7), End: at(0, 9)},
		{OrderID: "B", Process: ProcessPrint, Machine: "P1", Start: at(1, 7), End: at(1, 9)},
		{OrderID: "C", Process: ProcessPrint, Machine: "P1", Start: at(2, 7), End: at(2, 9)},
		{OrderID: "D", Process: ProcessPrint, Machine: "P1", Start: at(0, 9), End: at(0, 9)},
	}}

	locks := plan.Locks(day)
	assert.Equal(t, []LockRecord{
		{OrderID: "A", Process: ProcessPrint, Kind: LockStrict, Date: day, Lock: Lock{Machine: "P1", Start: at(0, 7), End: at(0, 9)}},
		{OrderID: "B", Process: ProcessPrint, Kind: LockSoft, Date: at(1, 0), Lock: Lock{Machine: "P1", Start: at(1, 7), End: at(1, 9)}},
	}, locks)

	ov := NewOverrides()
	for _, l := range locks {
		ov.AddLock(l)
	}
	assert.Contains(t, ov.StrictLocks, TaskKey{OrderID: "A", Process: ProcessPrint})
	assert.Contains(t, ov.SoftLocks, TaskKey{OrderID: "B", Process: ProcessPrint})
}
