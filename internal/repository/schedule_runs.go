package repository

import (
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

// InsertScheduleRun 在一个事务中保存确认的计划，并用新的锁定整体替换旧的锁定
func (r *Repository) InsertScheduleRun(run *domain.ScheduleRun, locks []domain.LockRecord) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	plan, err := json.Marshal(run.Plan)
	if err != nil {
		return err
	}

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO schedule_runs (id, horizon_start, plan, committed_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, version
	`
	params := []any{run.ID, run.Plan.HorizonStart, plan, run.CommittedBy}
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&run.CreatedAt, &run.Version); err != nil {
		return err
	}

	// 旧计划的锁定全部失效
	query = `DELETE FROM schedule_locks`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return err
	}

	for _, l := range locks {
		query = `
			INSERT INTO schedule_locks (order_id, process, run_id, machine, work_date, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		params := []any{l.OrderID, l.Process, run.ID, l.Machine, l.Date, l.Start, l.End}
		if _, err := tx.ExecContext(ctx, query, params...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLatestScheduleRun 没有任何已确认的计划时返回 sql.ErrNoRows
func (r *Repository) GetLatestScheduleRun() (*domain.ScheduleRun, error) {
	query := `
		SELECT id, plan, committed_by, created_at, version
		FROM schedule_runs
		ORDER BY created_at DESC
		LIMIT 1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var (
		run  domain.ScheduleRun
		plan []byte
	)
	dst := []any{
		&run.ID,
		&plan,
		&run.CommittedBy,
		&run.CreatedAt,
		&run.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query).Scan(dst...); err != nil {
		return nil, err
	}

	run.Plan = &domain.Plan{}
	if err := json.Unmarshal(plan, run.Plan); err != nil {
		return nil, err
	}

	return &run, nil
}

// GetLocks 返回 day 当天的锁定（严格锁定）和次日的锁定（软锁定）。day 是车间时区的零点
func (r *Repository) GetLocks(day time.Time) ([]domain.LockRecord, error) {
	query := `
		SELECT order_id, process, machine, work_date, start_time, end_time
		FROM schedule_locks
		WHERE work_date IN ($1, $2)
		ORDER BY machine, start_time
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	nextDay := day.AddDate(0, 0, 1)
	rows, err := r.dbpool.QueryContext(ctx, query, day, nextDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locks := []domain.LockRecord{}
	for rows.Next() {
		var (
			l        domain.LockRecord
			workDate time.Time
		)
		dst := []any{
			&l.OrderID,
			&l.Process,
			&l.Machine,
			&workDate,
			&l.Start,
			&l.End,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		// DATE 列读出来是 UTC 零点，按年月日比较
		if workDate.Format(time.DateOnly) == day.Format(time.DateOnly) {
			l.Kind, l.Date = domain.LockStrict, day
		} else {
			l.Kind, l.Date = domain.LockSoft, nextDay
		}
		locks = append(locks, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return locks, nil
}
