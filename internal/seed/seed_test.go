package seed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/plant"
)

func loadPlant(t *testing.T) *domain.Plant {
	t.Helper()
	p, err := plant.Load(filepath.Join("..", "..", "configs", "plant.yaml"))
	require.NoError(t, err)
	return p
}

func TestParseOrdersSampleFile(t *testing.T) {
	p := loadPlant(t)

	file, err := os.Open(filepath.Join("data", "orders.csv"))
	require.NoError(t, err)
	defer file.Close()

	orders, errs := ParseOrders(file, p)
	require.Empty(t, errs)
	require.Len(t, orders, 4)

	o := orders[0]
	assert.Equal(t, "CJ10023-01", o.ID)
	assert.Equal(t, 4200, o.Quantity)
	assert.Equal(t, 4, o.Cavities)
	assert.False(t, o.Urgent)
	assert.Equal(t, map[domain.Process]bool{
		domain.ProcessPrint:   true,
		domain.ProcessVarnish: true,
		domain.ProcessDieCut:  true,
		domain.ProcessGlue:    true,
	}, o.Pending)

	// 只有日期的交期取当天结束
	assert.True(t, time.Date(2026, time.October, 24, 0, 0, 0, 0, p.Calendar.Location).Equal(o.DueDate))
	require.NotNil(t, o.DieArrival)
	assert.True(t, time.Date(2026, time.October, 20, 0, 0, 0, 0, p.Calendar.Location).Equal(*o.DieArrival))

	assert.Equal(t, "CJ10031", orders[2].ID)
	assert.True(t, orders[2].Urgent)
	assert.True(t, time.Date(2026, time.October, 22, 12, 0, 0, 0, p.Calendar.Location).Equal(orders[2].DueDate))

	// 刀模需要但没有到货日期
	last := orders[3]
	assert.True(t, last.DieNeeded)
	assert.Nil(t, last.DieArrival)
	assert.True(t, last.DieBeforePrint)
	assert.Equal(t, []domain.Process{domain.ProcessBobbinCut, domain.ProcessDieCut, domain.ProcessPrint}, last.CustomSequence)
}

func TestParseOrdersErrors(t *testing.T) {
	p := loadPlant(t)

	_, errs := ParseOrders(strings.NewReader("client,quantity\n立白日化,100\n"), p)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "product_code")

	data := strings.Join([]string{
		"product_code,client,quantity,print,custom_sequence,due_date",
		"A1,c,abc,sí,,",
		"A2,c,100,tal vez,,",
		"A3,c,100,sí,print>laminate,",
		"A4,c,100,sí,,23/10/2026",
		"A5,c,100,sí,,",
	}, "\n")
	orders, errs := ParseOrders(strings.NewReader(data), p)
	require.Len(t, orders, 1)
	assert.Equal(t, "A5", orders[0].ID)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Error(), "第 2 行")
	assert.Contains(t, errs[1].Error(), "tal vez")
	assert.Contains(t, errs[2].Error(), "laminate")
	assert.Contains(t, errs[3].Error(), "due_date")
}

type fakeRepo struct {
	ids map[string]bool
}

func (r *fakeRepo) CreateOrder(o *domain.WorkOrder) error {
	if r.ids[o.ID] {
		return &pgconn.PgError{Code: "23505", ConstraintName: "work_orders_pkey"}
	}
	if o.Quantity == 0 {
		return errors.New("quantity must be positive")
	}
	r.ids[o.ID] = true
	return nil
}

func TestSeedRandomOrders(t *testing.T) {
	p := loadPlant(t)
	repo := &fakeRepo{ids: make(map[string]bool)}

	n := SeedRandomOrders(repo, 20, p, time.Now())
	assert.Equal(t, len(repo.ids), n)
	assert.LessOrEqual(t, n, 20)
	assert.Positive(t, n)
}
