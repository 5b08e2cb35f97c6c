package scheduler

import (
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

const (
	setupReasonNoPrevious   = "机器上没有前一个任务"
	setupReasonDifferentJob = "与前一个任务属性不同"
	setupReasonSameDie      = "刀模相同"
	setupReasonSameColor    = "客户和颜色相同"
	setupReasonSameSize     = "客户和尺寸相同"
	setupReasonSameGlue     = "胶水类型和材料相同"
)

// ClassifySetup 根据机器上紧邻的前一个任务判断使用减量换型还是基础换型
func ClassifySetup(prev, cand *domain.ProcessTask) (domain.SetupKind, string) {
	if prev == nil {
		return domain.SetupBase, setupReasonNoPrevious
	}
	if prev.Process != cand.Process {
		return domain.SetupBase, setupReasonDifferentJob
	}

	p, c := prev.Order, cand.Order
	switch cand.Process {
	case domain.ProcessDieCut:
		if c.DieCode != "" && p.DieCode == c.DieCode {
			return domain.SetupReduced, setupReasonSameDie
		}
	case domain.ProcessPrint:
		if c.Client != "" && p.Client == c.Client {
			if c.Color != "" && domain.NormalizeColor(p.Color) == domain.NormalizeColor(c.Color) {
				return domain.SetupReduced, setupReasonSameColor
			}
			if sameSheet(p, c) {
				return domain.SetupReduced, setupReasonSameSize
			}
		}
	case domain.ProcessGlue:
		if c.GlueType != "" && p.GlueType == c.GlueType && p.Material == c.Material {
			return domain.SetupReduced, setupReasonSameGlue
		}
	}

	return domain.SetupBase, setupReasonDifferentJob
}

func sameSheet(a, b *domain.WorkOrder) bool {
	if a.SheetWidth <= 0 || a.SheetLength <= 0 {
		return false
	}
	return domain.NewEnvelope(a.SheetWidth, a.SheetLength) == domain.NewEnvelope(b.SheetWidth, b.SheetLength)
}

// Duration 计算换型分钟数和运行小时数；机器产能未配置时返回 ok = false，时长视为 0
func Duration(task *domain.ProcessTask, m *domain.Machine, kind domain.SetupKind) (setupMinutes, runHours float64, ok bool) {
	if m == nil || m.Throughput <= 0 {
		return 0, 0, false
	}

	setupMinutes = m.BaseSetupMinutes
	if kind == domain.SetupReduced {
		setupMinutes = m.ReducedSetupMinutes
	}
	return max(setupMinutes, 0), float64(task.Quantity) / m.Throughput, true
}
