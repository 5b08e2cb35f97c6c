package repository

import (
	"database/sql"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func (r *Repository) ListTaskOverrides() ([]*domain.TaskOverride, error) {
	query := `
		SELECT
			order_id,
			process,
			priority,
			machine,
			outsourced,
			skipped,
			deleted,
			version
		FROM task_overrides
		ORDER BY order_id, process
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := []*domain.TaskOverride{}
	for rows.Next() {
		var (
			o        domain.TaskOverride
			priority sql.NullInt32
			machine  sql.NullString
		)
		dst := []any{
			&o.OrderID,
			&o.Process,
			&priority,
			&machine,
			&o.Outsourced,
			&o.Skipped,
			&o.Deleted,
			&o.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if priority.Valid {
			p := int(priority.Int32)
			o.Priority = &p
		}
		if machine.Valid {
			o.Machine = &machine.String
		}
		overrides = append(overrides, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return overrides, nil
}

func (r *Repository) ListMachinePriorities() ([]*domain.MachinePriority, error) {
	query := `SELECT order_id, machine, priority FROM machine_priorities ORDER BY order_id, machine`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	priorities := []*domain.MachinePriority{}
	for rows.Next() {
		var p domain.MachinePriority
		if err := rows.Scan(&p.OrderID, &p.Machine, &p.Priority); err != nil {
			return nil, err
		}
		priorities = append(priorities, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return priorities, nil
}

func (r *Repository) listBlacklist() ([]string, error) {
	query := `SELECT id FROM work_orders WHERE blacklisted = TRUE AND completed = FALSE`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GetOverrides 汇总所有人工覆盖（不含锁定，锁定按工作日通过 GetLocks 读取）
func (r *Repository) GetOverrides() (*domain.Overrides, error) {
	ov := domain.NewOverrides()

	tasks, err := r.ListTaskOverrides()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		ov.AddTaskOverride(*t)
	}

	priorities, err := r.ListMachinePriorities()
	if err != nil {
		return nil, err
	}
	for _, p := range priorities {
		ov.PriorityByMachine[domain.OrderMachineKey{OrderID: p.OrderID, Machine: p.Machine}] = p.Priority
	}

	blacklist, err := r.listBlacklist()
	if err != nil {
		return nil, err
	}
	for _, id := range blacklist {
		ov.Blacklist[id] = true
	}

	return ov, nil
}

func (r *Repository) UpsertTaskOverride(o *domain.TaskOverride) error {
	query := `
		INSERT INTO task_overrides (order_id, process, priority, machine, outsourced, skipped, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, process) DO UPDATE
		SET
			priority = EXCLUDED.priority,
			machine = EXCLUDED.machine,
			outsourced = EXCLUDED.outsourced,
			skipped = EXCLUDED.skipped,
			deleted = EXCLUDED.deleted,
			version = task_overrides.version + 1
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	params := []any{
		o.OrderID,
		o.Process,
		o.Priority,
		o.Machine,
		o.Outsourced,
		o.Skipped,
		o.Deleted,
	}

	return r.dbpool.QueryRowContext(ctx, query, params...).Scan(&o.Version)
}

func (r *Repository) UpsertMachinePriority(p *domain.MachinePriority) error {
	query := `
		INSERT INTO machine_priorities (order_id, machine, priority)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, machine) DO UPDATE SET priority = EXCLUDED.priority
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, p.OrderID, p.Machine, p.Priority)
	return err
}
