package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

var clients = []string{
	"华润包装", "广药白云山", "立白日化", "美的电器", "格力电器",
	"海天味业", "加多宝", "王老吉", "蓝月亮", "欧派家居",
}

var materials = []string{
	"cartulina 350g", "cartulina 300g", "microcanal E", "corrugado BC", "papel couché 157g",
}

var colors = []string{
	"CMYK", "C+M+Y+K", "PANTONE 485", "PANTONE 300+BLACK", "BLACK", "4C+PANTONE 871",
}

var glueTypes = []string{"", "hotmelt", "pva"}

var digits = "0123456789"

func GenerateRandomID(letterLength int, digitLength int) string {
	const upper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	id := make([]byte, letterLength+digitLength)
	for i := range id {
		if i < letterLength {
			id[i] = upper[rand.Intn(len(upper))]
		} else {
			id[i] = digits[rand.Intn(len(digits))]
		}
	}
	return string(id)
}

func pick[T any](arr []T) T {
	return arr[rand.Intn(len(arr))]
}

// GenerateRandomPending 随机生成待处理工序，至少包含一道工序
func GenerateRandomPending(processes []domain.Process) map[domain.Process]bool {
	pending := make(map[domain.Process]bool, len(processes))
	for _, p := range processes {
		pending[p] = rand.Intn(3) > 0
	}
	if len(processes) > 0 {
		pending[pick(processes)] = true
	}
	return pending
}

// GenerateRandomWorkOrder 随机生成一个交期在 now 之后 3~30 天内的工单
func GenerateRandomWorkOrder(now time.Time, processes []domain.Process) *domain.WorkOrder {
	productCode := GenerateRandomID(2, 5)
	subCode := fmt.Sprintf("%02d", rand.Intn(10))
	width := float64(40 + rand.Intn(60))
	length := float64(50 + rand.Intn(70))

	order := &domain.WorkOrder{
		ID:          domain.OrderID(productCode, subCode),
		ProductCode: productCode,
		SubCode:     subCode,
		Client:      pick(clients),
		DueDate:     now.Add(time.Hour * 24 * time.Duration(3+rand.Intn(28))),
		Quantity:    500 + rand.Intn(20)*250,
		Material:    pick(materials),
		Color:       pick(colors),
		DieCode:     "D" + GenerateRandomID(0, 4),
		SheetWidth:  width,
		SheetLength: length,
		Weight:      float64(200 + rand.Intn(6)*50),
		GlueType:    pick(glueTypes),
		UpsPerSheet: 1 + rand.Intn(6),
		Cavities:    1 + rand.Intn(8),
		Urgent:      rand.Intn(10) == 0,
		Pending:     GenerateRandomPending(processes),
	}

	// 大部分工单的物料已经到货
	arrival := now.Add(time.Hour * 24 * time.Duration(rand.Intn(3)))
	order.MaterialNeeded = true
	order.MaterialArrival = &arrival
	if order.Pending[domain.ProcessPrint] {
		order.PlateNeeded = true
		if rand.Intn(8) > 0 {
			plate := arrival
			order.PlateArrival = &plate
		}
	}
	if order.Pending[domain.ProcessDieCut] {
		order.DieNeeded = true
		if rand.Intn(8) > 0 {
			die := arrival.Add(time.Hour * 24)
			order.DieArrival = &die
		}
	}

	return order
}
