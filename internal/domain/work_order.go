package domain

import "time"

type Process string

const (
	ProcessBobbinCut Process = "bobbin_cut"
	ProcessPrint     Process = "print"
	ProcessVarnish   Process = "varnish"
	ProcessDieCut    Process = "die_cut"
	ProcessWindow    Process = "window"
	ProcessGlue      Process = "glue"
)

// OrderID 由产品编码和子编码组成工单的唯一标识
func OrderID(productCode, subCode string) string {
	if subCode == "" {
		return productCode
	}
	return productCode + "-" + subCode
}

type WorkOrder struct {
	ID          string    `json:"id"`
	ProductCode string    `json:"productCode"`
	SubCode     string    `json:"subCode"`
	Client      string    `json:"client"`
	DueDate     time.Time `json:"dueDate"`
	Quantity    int       `json:"quantity"` // 张数
	Material    string    `json:"material"`
	Color       string    `json:"color"`
	DieCode     string    `json:"dieCode"`
	SheetWidth  float64   `json:"sheetWidth"`  // cm
	SheetLength float64   `json:"sheetLength"` // cm
	Weight      float64   `json:"weight"`      // 克重
	GlueType    string    `json:"glueType"`
	UpsPerSheet int       `json:"upsPerSheet"`
	Cavities    int       `json:"cavities"`
	Urgent      bool      `json:"urgent"`

	Pending        map[Process]bool `json:"pending"`
	CustomSequence []Process        `json:"customSequence"`
	DieBeforePrint bool             `json:"dieBeforePrint"`

	// 物理输入（印版、刀模、原材料），到货日期为 nil 表示未知
	PlateNeeded     bool       `json:"plateNeeded"`
	PlateArrival    *time.Time `json:"plateArrival"`
	DieNeeded       bool       `json:"dieNeeded"`
	DieArrival      *time.Time `json:"dieArrival"`
	MaterialNeeded  bool       `json:"materialNeeded"`
	MaterialArrival *time.Time `json:"materialArrival"`

	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}
