package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

func task(o *domain.WorkOrder, p domain.Process) *domain.ProcessTask {
	return &domain.ProcessTask{Order: o, Process: p, Quantity: o.Quantity, ManualPriority: domain.NoPriority}
}

func TestClassifySetup(t *testing.T) {
	printA := &domain.WorkOrder{ID: "A", Client: "立白", Color: "PANTONE 485+BLACK", SheetWidth: 70, SheetLength: 100}
	printB := &domain.WorkOrder{ID: "B", Client: "立白", Color: "black + pantone 485", SheetWidth: 50, SheetLength: 60}
	printC := &domain.WorkOrder{ID: "C", Client: "立白", Color: "CMYK", SheetWidth: 100, SheetLength: 70}
	printD := &domain.WorkOrder{ID: "D", Client: "蓝月亮", Color: "CMYK", SheetWidth: 70, SheetLength: 100}

	dieA := &domain.WorkOrder{ID: "E", DieCode: "D-100"}
	dieB := &domain.WorkOrder{ID: "F", DieCode: "D-100"}
	dieC := &domain.WorkOrder{ID: "G", DieCode: "D-200"}
	noDie := &domain.WorkOrder{ID: "H"}

	glueA := &domain.WorkOrder{ID: "I", GlueType: "hotmelt", Material: "cartulina"}
	glueB := &domain.WorkOrder{ID: "J", GlueType: "hotmelt", Material: "cartulina"}
	glueC := &domain.WorkOrder{ID: "K", GlueType: "hotmelt", Material: "microcanal"}

	tests := []struct {
		name string
		prev *domain.ProcessTask
		cand *domain.ProcessTask
		want domain.SetupKind
	}{
		{"没有前一个任务", nil, task(printA, domain.ProcessPrint), domain.SetupBase},
		{"工序不同", task(dieA, domain.ProcessDieCut), task(printA, domain.ProcessPrint), domain.SetupBase},
		{"同客户同颜色", task(printA, domain.ProcessPrint), task(printB, domain.ProcessPrint), domain.SetupReduced},
		{"同客户同尺寸", task(printA, domain.ProcessPrint), task(printC, domain.ProcessPrint), domain.SetupReduced},
		{"不同客户", task(printC, domain.ProcessPrint), task(printD, domain.ProcessPrint), domain.SetupBase},
		{"同刀模", task(dieA, domain.ProcessDieCut), task(dieB, domain.ProcessDieCut), domain.SetupReduced},
		{"不同刀模", task(dieA, domain.ProcessDieCut), task(dieC, domain.ProcessDieCut), domain.SetupBase},
		{"空刀模", task(noDie, domain.ProcessDieCut), task(noDie, domain.ProcessDieCut), domain.SetupBase},
		{"同胶水同材料", task(glueA, domain.ProcessGlue), task(glueB, domain.ProcessGlue), domain.SetupReduced},
		{"同胶水不同材料", task(glueA, domain.ProcessGlue), task(glueC, domain.ProcessGlue), domain.SetupBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ClassifySetup(tt.prev, tt.cand)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestDuration(t *testing.T) {
	m := &domain.Machine{Name: "P1", Process: domain.ProcessPrint, Throughput: 500, BaseSetupMinutes: 60, ReducedSetupMinutes: 15}
	tk := task(&domain.WorkOrder{ID: "A", Quantity: 1000}, domain.ProcessPrint)

	setup, run, ok := Duration(tk, m, domain.SetupBase)
	assert.True(t, ok)
	assert.Equal(t, 60.0, setup)
	assert.Equal(t, 2.0, run)

	setup, _, _ = Duration(tk, m, domain.SetupReduced)
	assert.Equal(t, 15.0, setup)

	m.Throughput = 0
	setup, run, ok = Duration(tk, m, domain.SetupBase)
	assert.False(t, ok)
	assert.Zero(t, setup)
	assert.Zero(t, run)
}
