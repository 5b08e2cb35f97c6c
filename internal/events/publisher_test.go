package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func TestPlanEventRoundTrip(t *testing.T) {
	due := time.Date(2026, time.October, 21, 17, 0, 0, 0, time.UTC)
	run := &domain.ScheduleRun{
		ID:          "9b2f0c8e-run",
		CommittedBy: "alice",
		CreatedAt:   time.Date(2026, time.October, 19, 8, 0, 0, 0, time.UTC),
		Plan: &domain.Plan{
			Orders: []domain.OrderRollup{
				{OrderID: "A-1", DueDate: due, Completion: due.Add(-time.Hour)},
				{OrderID: "B-2", DueDate: due, Completion: due.Add(5 * time.Hour), LatenessHours: 5, AtRisk: true},
			},
		},
	}

	event := NewPlanEvent(run)
	assert.Equal(t, domain.EventPlanCommitted, event.Type)
	require.Len(t, event.AtRiskOrders, 1)
	assert.Equal(t, "B-2", event.AtRiskOrders[0].OrderID)

	body := []byte(`{"type":"plan_committed","runID":"9b2f0c8e-run","committedBy":"alice","committedAt":"2026-10-19T08:00:00Z","atRiskOrders":[{"orderID":"B-2","latenessHours":5,"atRisk":true}]}`)
	decoded, err := DecodePlanEvent(body)
	require.NoError(t, err)
	assert.Equal(t, event.RunID, decoded.RunID)
	assert.True(t, event.CommittedAt.Equal(decoded.CommittedAt))
	assert.Equal(t, 5.0, decoded.AtRiskOrders[0].LatenessHours)

	_, err = DecodePlanEvent([]byte("not json"))
	assert.Error(t, err)
}
