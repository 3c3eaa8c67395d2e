package laboratory

import (
	"fmt"
	"math"

	"github.com/hitoshi/labtrack/internal/model"
)

// アンケート回答の許容範囲。
const (
	MinMonitors           = 1
	MaxMonitors           = 10
	MinFreezerTemperature = -200
	MaxFreezerTemperature = 0
)

// エネルギーモデルの定数。
const (
	// ultBaseKWhPerDay は-80℃設定のULTフリーザー1台あたりの1日の消費電力量。
	ultBaseKWhPerDay = 16.0
	// ultSetPointFactor は設定温度1℃あたりの消費電力量の変化率（-80℃基準）。
	ultSetPointFactor = 0.025
	// ultMinMultiplier は設定温度による補正倍率の下限。
	ultMinMultiplier = 0.2
	// ultRecommendedTemperature は推奨する設定温度。
	ultRecommendedTemperature = -70

	// monitorWatts はモニター1台の消費電力。
	monitorWatts = 30.0
	// monitorHoursPerYear はモニターの年間使用時間（8時間×250日）。
	monitorHoursPerYear = 8 * 250

	daysPerYear = 365
)

// MonitorAdvice は複数モニター利用時の推奨文。
const MonitorAdvice = "We recommend you to use only 1 monitor per laptop."

// NormalizeAnswers は回答の既定値を補い、範囲外の値をエラーにする。
// 複数モニターを使わない場合、MaxMonitorsは0に揃える。
func NormalizeAnswers(a model.ChecklistAnswers) (model.ChecklistAnswers, error) {
	if a.FreezerTemperature == 0 {
		a.FreezerTemperature = model.DefaultFreezerTemperature
	}

	if !a.MultipleMonitors {
		a.MaxMonitors = 0
	} else if a.MaxMonitors < MinMonitors || a.MaxMonitors > MaxMonitors {
		return a, model.NewInvalidChecklistError(
			fmt.Sprintf("maxMonitors must be between %d and %d", MinMonitors, MaxMonitors))
	}

	if a.ULTFreezers < 0 {
		return a, model.NewInvalidChecklistError("ultFreezers must not be negative")
	}

	if a.FreezerTemperature < MinFreezerTemperature || a.FreezerTemperature > MaxFreezerTemperature {
		return a, model.NewInvalidChecklistError(
			fmt.Sprintf("freezerTemperature must be between %d and %d", MinFreezerTemperature, MaxFreezerTemperature))
	}

	return a, nil
}

// Calculator はアンケート回答から年間消費電力量と排出量を算出する。
type Calculator struct {
	// GridEmissionFactor は電力1kWhあたりの排出量（kgCO2e/kWh）。
	GridEmissionFactor float64
}

// NewCalculator はCalculatorを生成する。
func NewCalculator(gridEmissionFactor float64) *Calculator {
	return &Calculator{GridEmissionFactor: gridEmissionFactor}
}

// Recommend は正規化済みの回答から推奨事項を算出する。
func (c *Calculator) Recommend(a model.ChecklistAnswers) model.LabRecommendations {
	freezer := freezerKWhPerYear(a.ULTFreezers, a.FreezerTemperature)
	monitors := extraMonitorKWhPerYear(a)
	energy := freezer + monitors

	rec := model.LabRecommendations{
		YearlyEnergyUsage: round1(energy),
		YearlyEmissions:   round1(energy * c.GridEmissionFactor),
	}

	if a.MultipleMonitors {
		rec.MonitorAdvice = MonitorAdvice
		if monitors > 0 {
			rec.MonitorAdvice += fmt.Sprintf(" This would save about %.0f kWh per year.", monitors)
		}
	}

	if a.ULTFreezers > 0 && a.FreezerTemperature < ultRecommendedTemperature {
		saving := freezer - freezerKWhPerYear(a.ULTFreezers, ultRecommendedTemperature)
		rec.FreezerAdvice = fmt.Sprintf(
			"Consider raising ULT freezer set-points to %d°C. This would save about %.0f kWh per year.",
			ultRecommendedTemperature, saving)
	}

	return rec
}

// freezerKWhPerYear はULTフリーザーの年間消費電力量を返す。
// -80℃を基準に、設定温度が1℃上がるごとにultSetPointFactorずつ減る。
func freezerKWhPerYear(count, temperature int) float64 {
	if count <= 0 {
		return 0
	}
	multiplier := 1 + ultSetPointFactor*float64(model.DefaultFreezerTemperature-temperature)
	multiplier = math.Max(multiplier, ultMinMultiplier)
	return float64(count) * ultBaseKWhPerDay * multiplier * daysPerYear
}

// extraMonitorKWhPerYear は2台目以降のモニターの年間消費電力量を返す。
func extraMonitorKWhPerYear(a model.ChecklistAnswers) float64 {
	if !a.MultipleMonitors || a.MaxMonitors <= 1 {
		return 0
	}
	return float64(a.MaxMonitors-1) * monitorWatts * monitorHoursPerYear / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
