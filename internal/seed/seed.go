package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/utils"
)

type OrderCreator interface {
	CreateOrder(o *domain.WorkOrder) error
}

// 必须存在的列，其余列缺失时按空值处理
var requiredHeaders = []string{"product_code", "client", "quantity"}

type row struct {
	line   int
	record map[string]string
}

func (r row) get(name string) string {
	return strings.TrimSpace(r.record[name])
}

func (r row) flag(name string) (bool, error) {
	v, err := utils.ParseFlag(r.record[name])
	if err != nil {
		return false, fmt.Errorf("第 %d 行 %s 列: %w", r.line, name, err)
	}
	return v, nil
}

func (r row) number(name string, def float64) (float64, error) {
	s := r.get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("第 %d 行 %s 列: 无法解析数字 %q", r.line, name, s)
	}
	return v, nil
}

// date 解析日期。只有日期时 endOfDay 决定取当天零点还是次日零点
func (r row) date(name string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	s := r.get(name)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return nil, fmt.Errorf("第 %d 行 %s 列: 无法解析日期 %q", r.line, name, s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// ParseOrders 读取 CSV 格式的工单。待处理工序按车间工序名作为列名，布尔列统一通过 utils.ParseFlag 解析。
// 解析失败的行会被跳过，错误逐行返回
func ParseOrders(in io.Reader, plant *domain.Plant) ([]*domain.WorkOrder, []error) {
	loc := plant.Calendar.Location
	if loc == nil {
		loc = time.Local
	}

	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("读取表头失败: %w", err)}
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}
	for _, h := range requiredHeaders {
		if !slices.Contains(headers, h) {
			return nil, []error{fmt.Errorf("缺少列 %s", h)}
		}
	}

	var (
		orders []*domain.WorkOrder
		errs   []error
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			errs = append(errs, err)
			continue
		}

		r := row{line: line, record: make(map[string]string, len(headers))}
		for i, value := range record {
			if i < len(headers) {
				r.record[headers[i]] = value
			}
		}

		order, err := parseOrder(r, plant, loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		orders = append(orders, order)
	}

	return orders, errs
}

func parseOrder(r row, plant *domain.Plant, loc *time.Location) (*domain.WorkOrder, error) {
	productCode := r.get("product_code")
	if productCode == "" {
		return nil, fmt.Errorf("第 %d 行: 缺少产品编码", r.line)
	}

	o := &domain.WorkOrder{
		ID:          domain.OrderID(productCode, r.get("sub_code")),
		ProductCode: productCode,
		SubCode:     r.get("sub_code"),
		Client:      r.get("client"),
		Material:    r.get("material"),
		Color:       r.get("color"),
		DieCode:     r.get("die_code"),
		GlueType:    r.get("glue_type"),
		Pending:     make(map[domain.Process]bool),
	}

	var err error
	numbers := []struct {
		name string
		def  float64
		dst  *float64
	}{
		{"sheet_width", 0, &o.SheetWidth},
		{"sheet_length", 0, &o.SheetLength},
		{"weight", 0, &o.Weight},
	}
	for _, n := range numbers {
		if *n.dst, err = r.number(n.name, n.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		name string
		def  float64
		dst  *int
	}{
		{"quantity", 0, &o.Quantity},
		{"ups_per_sheet", 1, &o.UpsPerSheet},
		{"cavities", 1, &o.Cavities},
	}
	for _, n := range ints {
		v, err := r.number(n.name, n.def)
		if err != nil {
			return nil, err
		}
		*n.dst = int(v)
	}
	if o.Quantity < 0 {
		return nil, fmt.Errorf("第 %d 行: 数量不能为负数", r.line)
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"urgent", &o.Urgent},
		{"die_before_print", &o.DieBeforePrint},
		{"plate_needed", &o.PlateNeeded},
		{"die_needed", &o.DieNeeded},
		{"material_needed", &o.MaterialNeeded},
	}
	for _, f := range flags {
		if *f.dst, err = r.flag(f.name); err != nil {
			return nil, err
		}
	}

	for _, p := range plant.ProcessOrder {
		pending, err := r.flag(string(p))
		if err != nil {
			return nil, err
		}
		if pending {
			o.Pending[p] = true
		}
	}

	// 自定义工序顺序用 > 分隔，例如 print>die_cut>glue
	if seq := r.get("custom_sequence"); seq != "" {
		for _, s := range strings.Split(seq, ">") {
			p := domain.Process(strings.TrimSpace(s))
			if !slices.Contains(plant.ProcessOrder, p) {
				return nil, fmt.Errorf("第 %d 行: 未知工序 %q", r.line, s)
			}
			o.CustomSequence = append(o.CustomSequence, p)
		}
	}

	due, err := r.date("due_date", loc, true)
	if err != nil {
		return nil, err
	}
	if due != nil {
		o.DueDate = *due
	}
	if o.PlateArrival, err = r.date("plate_arrival", loc, false); err != nil {
		return nil, err
	}
	if o.DieArrival, err = r.date("die_arrival", loc, false); err != nil {
		return nil, err
	}
	if o.MaterialArrival, err = r.date("material_arrival", loc, false); err != nil {
		return nil, err
	}

	return o, nil
}

// insert 返回是否插入成功，已存在的工单直接跳过
func insert(repo OrderCreator, o *domain.WorkOrder) bool {
	if err := repo.CreateOrder(o); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "work_orders_pkey":
			slog.Info("工单已存在，跳过", "id", o.ID)
		default:
			slog.Error("插入工单失败", "id", o.ID, "error", err)
		}
		return false
	}
	return true
}

// SeedOrders 从 CSV 文件导入工单
func SeedOrders(repo OrderCreator, path string, plant *domain.Plant) {
	file, err := os.Open(path)
	if err != nil {
		slog.Error("打开文件失败", "error", err)
		return
	}
	defer file.Close()

	orders, errs := ParseOrders(file, plant)
	for _, err := range errs {
		slog.Error("解析工单失败", "error", err)
	}

	cnt := 0
	for _, o := range orders {
		if insert(repo, o) {
			cnt++
		}
	}

	slog.Info("导入工单完成", "count", cnt, "failed", len(errs))
}

// SeedRandomOrders 插入 n 个随机工单
func SeedRandomOrders(repo OrderCreator, n int, plant *domain.Plant, now time.Time) int {
	cnt := 0
	for i := 0; i < n; i++ {
		if insert(repo, utils.GenerateRandomWorkOrder(now, plant.ProcessOrder)) {
			cnt++
		}
	}
	return cnt
}
