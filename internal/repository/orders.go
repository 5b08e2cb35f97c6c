package repository

import (
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

const orderColumns = `
	id,
	product_code,
	sub_code,
	client,
	due_date,
	quantity,
	material,
	color,
	die_code,
	sheet_width,
	sheet_length,
	weight,
	glue_type,
	ups_per_sheet,
	cavities,
	urgent,
	pending,
	custom_sequence,
	die_before_print,
	plate_needed,
	plate_arrival,
	die_needed,
	die_arrival,
	material_needed,
	material_arrival,
	created_at,
	version
`

func encodeProcesses(ps []domain.Process) string {
	ss := make([]string, len(ps))
	for i, p := range ps {
		ss[i] = string(p)
	}
	return strings.Join(ss, ",")
}

func decodeProcesses(s string) []domain.Process {
	if s == "" {
		return nil
	}
	var ps []domain.Process
	for _, p := range strings.Split(s, ",") {
		ps = append(ps, domain.Process(p))
	}
	return ps
}

func pendingList(pending map[domain.Process]bool) []domain.Process {
	var ps []domain.Process
	for p, ok := range pending {
		if ok {
			ps = append(ps, p)
		}
	}
	slices.Sort(ps)
	return ps
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func scanOrder(rows interface{ Scan(...any) error }) (*domain.WorkOrder, error) {
	var (
		o               domain.WorkOrder
		dueDate         sql.NullTime
		pending         string
		customSequence  string
		plateArrival    sql.NullTime
		dieArrival      sql.NullTime
		materialArrival sql.NullTime
	)
	dst := []any{
		&o.ID,
		&o.ProductCode,
		&o.SubCode,
		&o.Client,
		&dueDate,
		&o.Quantity,
		&o.Material,
		&o.Color,
		&o.DieCode,
		&o.SheetWidth,
		&o.SheetLength,
		&o.Weight,
		&o.GlueType,
		&o.UpsPerSheet,
		&o.Cavities,
		&o.Urgent,
		&pending,
		&customSequence,
		&o.DieBeforePrint,
		&o.PlateNeeded,
		&plateArrival,
		&o.DieNeeded,
		&dieArrival,
		&o.MaterialNeeded,
		&materialArrival,
		&o.CreatedAt,
		&o.Version,
	}
	if err := rows.Scan(dst...); err != nil {
		return nil, err
	}

	if dueDate.Valid {
		o.DueDate = dueDate.Time
	}
	o.Pending = make(map[domain.Process]bool)
	for _, p := range decodeProcesses(pending) {
		o.Pending[p] = true
	}
	o.CustomSequence = decodeProcesses(customSequence)
	o.PlateArrival = timePtr(plateArrival)
	o.DieArrival = timePtr(dieArrival)
	o.MaterialArrival = timePtr(materialArrival)

	return &o, nil
}

// ListOpenOrders 返回所有尚未完工的工单，包括被加入黑名单的工单
func (r *Repository) ListOpenOrders() ([]*domain.WorkOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM work_orders WHERE completed = FALSE ORDER BY id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.WorkOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *Repository) GetOrderByID(id string) (*domain.WorkOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM work_orders WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanOrder(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) CreateOrder(o *domain.WorkOrder) error {
	query := `
		INSERT INTO work_orders (
			id,
			product_code,
			sub_code,
			client,
			due_date,
			quantity,
			material,
			color,
			die_code,
			sheet_width,
			sheet_length,
			weight,
			glue_type,
			ups_per_sheet,
			cavities,
			urgent,
			pending,
			custom_sequence,
			die_before_print,
			plate_needed,
			plate_arrival,
			die_needed,
			die_arrival,
			material_needed,
			material_arrival
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	params := []any{
		o.ID,
		o.ProductCode,
		o.SubCode,
		o.Client,
		nullTime(o.DueDate),
		o.Quantity,
		o.Material,
		o.Color,
		o.DieCode,
		o.SheetWidth,
		o.SheetLength,
		o.Weight,
		o.GlueType,
		o.UpsPerSheet,
		o.Cavities,
		o.Urgent,
		encodeProcesses(pendingList(o.Pending)),
		encodeProcesses(o.CustomSequence),
		o.DieBeforePrint,
		o.PlateNeeded,
		o.PlateArrival,
		o.DieNeeded,
		o.DieArrival,
		o.MaterialNeeded,
		o.MaterialArrival,
	}

	return r.dbpool.QueryRowContext(ctx, query, params...).Scan(&o.CreatedAt, &o.Version)
}

// SetOrderBlacklisted 工单不存在时返回 sql.ErrNoRows
func (r *Repository) SetOrderBlacklisted(id string, blacklisted bool) error {
	query := `
		UPDATE work_orders
		SET blacklisted = $1, version = version + 1
		WHERE id = $2
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var version int32
	return r.dbpool.QueryRowContext(ctx, query, blacklisted, id).Scan(&version)
}
