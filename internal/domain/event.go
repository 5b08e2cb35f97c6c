package domain

import "time"

const EventPlanCommitted = "plan_committed"

type PlanEvent struct {
	Type         string        `json:"type"`
	RunID        string        `json:"runID"`
	CommittedBy  string        `json:"committedBy"`
	CommittedAt  time.Time     `json:"committedAt"`
	AtRiskOrders []OrderRollup `json:"atRiskOrders"`
}

type AtRiskMailData struct {
	RunID       string
	CommittedAt string
	Orders      []OrderRollup
}
