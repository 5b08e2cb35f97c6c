package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"1", true},
		{" TRUE ", true},
		{"Sí", true},
		{"x", true},
		{"是", true},
		{"", false},
		{"0", false},
		{"No", false},
		{"已完成", false},
	}
	for _, tt := range tests {
		got, err := ParseFlag(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseFlag("maybe")
	assert.Error(t, err)
}

func entry(order string, seq int, machine string, start, end time.Time, flags ...domain.EntryFlag) domain.ScheduleEntry {
	return domain.ScheduleEntry{
		OrderID:   order,
		Seq:       seq,
		Machine:   machine,
		Start:     start,
		End:       end,
		Intervals: []domain.Interval{{Start: start, End: end}},
		Flags:     flags,
	}
}

func TestValidateNoDoubleBooking(t *testing.T) {
	base := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }

	ok := []domain.ScheduleEntry{
		entry("A", 0, "M1", h(0), h(2)),
		entry("B", 0, "M1", h(2), h(3)),
		entry("C", 0, "M2", h(1), h(4)),
	}
	assert.NoError(t, ValidateNoDoubleBooking(ok))

	bad := append(ok, entry("D", 0, "M1", h(1), h(2)))
	assert.Error(t, ValidateNoDoubleBooking(bad))
}

func TestValidateOrderSequencing(t *testing.T) {
	base := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }

	assert.NoError(t, ValidateOrderSequencing([]domain.ScheduleEntry{
		entry("A", 0, "M1", h(0), h(2)),
		entry("A", 1, "M2", h(2), h(3)),
	}))

	assert.Error(t, ValidateOrderSequencing([]domain.ScheduleEntry{
		entry("A", 0, "M1", h(0), h(2)),
		entry("A", 1, "M2", h(1), h(3)),
	}))

	// 严格锁定的条目按原样保留
	assert.NoError(t, ValidateOrderSequencing([]domain.ScheduleEntry{
		entry("A", 0, "M1", h(0), h(2)),
		entry("A", 1, "M2", h(1), h(3), domain.FlagLocked),
	}))
}

func TestGenerateRandomWorkOrder(t *testing.T) {
	now := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	processes := []domain.Process{domain.ProcessPrint, domain.ProcessDieCut, domain.ProcessGlue}

	for range 20 {
		o := GenerateRandomWorkOrder(now, processes)
		assert.NotEmpty(t, o.ID)
		assert.True(t, o.DueDate.After(now))
		assert.Positive(t, o.Quantity)

		pending := 0
		for _, p := range processes {
			if o.Pending[p] {
				pending++
			}
		}
		assert.Positive(t, pending)
	}
}
