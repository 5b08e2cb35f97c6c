package repository

import (
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// ListDowntimes 返回在 from 之后仍未结束的停机计划
func (r *Repository) ListDowntimes(from time.Time) ([]domain.Downtime, error) {
	query := `
		SELECT machine, start_time, end_time
		FROM downtimes
		WHERE end_time > $1
		ORDER BY machine, start_time
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	downtimes := []domain.Downtime{}
	for rows.Next() {
		var d domain.Downtime
		if err := rows.Scan(&d.Machine, &d.Start, &d.End); err != nil {
			return nil, err
		}
		downtimes = append(downtimes, d)
	}

	return downtimes, rows.Err()
}

func (r *Repository) CreateDowntime(d *domain.Downtime) error {
	query := `INSERT INTO downtimes (machine, start_time, end_time) VALUES ($1, $2, $3)`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, d.Machine, d.Start, d.End)
	return err
}

// ListOvertimeGrants 返回 from 当天及之后的加班
func (r *Repository) ListOvertimeGrants(from time.Time) ([]domain.OvertimeGrant, error) {
	query := `
		SELECT machine, work_date, hours
		FROM overtime_grants
		WHERE work_date >= $1
		ORDER BY work_date, machine
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []domain.OvertimeGrant{}
	for rows.Next() {
		var g domain.OvertimeGrant
		if err := rows.Scan(&g.Machine, &g.Date, &g.Hours); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}

	return grants, rows.Err()
}

// UpsertOvertimeGrant 同一机器同一天只保留一条加班记录
func (r *Repository) UpsertOvertimeGrant(g *domain.OvertimeGrant) error {
	query := `
		INSERT INTO overtime_grants (machine, work_date, hours)
		VALUES ($1, $2, $3)
		ON CONFLICT (machine, work_date) DO UPDATE SET hours = EXCLUDED.hours
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, g.Machine, g.Date, g.Hours)
	return err
}
