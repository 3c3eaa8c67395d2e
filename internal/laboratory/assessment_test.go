package laboratory

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/hitoshi/labtrack/internal/model"
)

func TestNormalizeAnswers(t *testing.T) {
	tests := []struct {
		name     string
		input    model.ChecklistAnswers
		want     model.ChecklistAnswers
		wantCode string
	}{
		{
			name:  "未回答の温度は-80に補う",
			input: model.ChecklistAnswers{},
			want:  model.ChecklistAnswers{FreezerTemperature: -80},
		},
		{
			name:  "複数モニターなしならMaxMonitorsを0に揃える",
			input: model.ChecklistAnswers{MultipleMonitors: false, MaxMonitors: 4, FreezerTemperature: -70},
			want:  model.ChecklistAnswers{FreezerTemperature: -70},
		},
		{
			name:  "上限ちょうどのモニター数",
			input: model.ChecklistAnswers{MultipleMonitors: true, MaxMonitors: 10, ULTFreezers: 2, FreezerTemperature: -200},
			want:  model.ChecklistAnswers{MultipleMonitors: true, MaxMonitors: 10, ULTFreezers: 2, FreezerTemperature: -200},
		},
		{
			name:     "複数モニターでモニター数0",
			input:    model.ChecklistAnswers{MultipleMonitors: true, MaxMonitors: 0},
			wantCode: model.ErrCodeInvalidChecklist,
		},
		{
			name:     "モニター数が上限超過",
			input:    model.ChecklistAnswers{MultipleMonitors: true, MaxMonitors: 11},
			wantCode: model.ErrCodeInvalidChecklist,
		},
		{
			name:     "フリーザー台数が負",
			input:    model.ChecklistAnswers{ULTFreezers: -1},
			wantCode: model.ErrCodeInvalidChecklist,
		},
		{
			name:     "温度が下限未満",
			input:    model.ChecklistAnswers{FreezerTemperature: -201},
			wantCode: model.ErrCodeInvalidChecklist,
		},
		{
			name:     "温度が正",
			input:    model.ChecklistAnswers{FreezerTemperature: 4},
			wantCode: model.ErrCodeInvalidChecklist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAnswers(tt.input)
			if tt.wantCode != "" {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want *model.APIError", err)
				}
				if apiErr.Code != tt.wantCode {
					t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAnswers がエラーを返した: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAnswers = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCalculator_Recommend_NoEquipment(t *testing.T) {
	c := NewCalculator(0.233)
	rec := c.Recommend(model.ChecklistAnswers{FreezerTemperature: -80})

	if rec.YearlyEnergyUsage != 0 || rec.YearlyEmissions != 0 {
		t.Errorf("設備なしの推奨値 = %+v, want zero usage", rec)
	}
	if rec.MonitorAdvice != "" || rec.FreezerAdvice != "" {
		t.Errorf("設備なしでは助言を出さないべき: %+v", rec)
	}
}

func TestCalculator_Recommend_FreezerAndMonitors(t *testing.T) {
	c := NewCalculator(0.233)
	rec := c.Recommend(model.ChecklistAnswers{
		MultipleMonitors:   true,
		MaxMonitors:        3,
		ULTFreezers:        1,
		FreezerTemperature: -80,
	})

	// フリーザー 16kWh×365 = 5840、モニター 2台×30W×2000h = 120
	if rec.YearlyEnergyUsage != 5960 {
		t.Errorf("YearlyEnergyUsage = %v, want 5960", rec.YearlyEnergyUsage)
	}
	if rec.YearlyEmissions != 1388.7 {
		t.Errorf("YearlyEmissions = %v, want 1388.7", rec.YearlyEmissions)
	}
	if !strings.HasPrefix(rec.MonitorAdvice, MonitorAdvice) {
		t.Errorf("MonitorAdvice = %q, want prefix %q", rec.MonitorAdvice, MonitorAdvice)
	}
	if !strings.Contains(rec.MonitorAdvice, "120 kWh") {
		t.Errorf("MonitorAdvice = %q, want saving of 120 kWh", rec.MonitorAdvice)
	}
	if !strings.Contains(rec.FreezerAdvice, "1460 kWh") {
		t.Errorf("FreezerAdvice = %q, want saving of 1460 kWh", rec.FreezerAdvice)
	}
}

func TestCalculator_Recommend_SingleMonitorStillAdvised(t *testing.T) {
	c := NewCalculator(0.5)
	rec := c.Recommend(model.ChecklistAnswers{MultipleMonitors: true, MaxMonitors: 1, FreezerTemperature: -80})

	if rec.MonitorAdvice != MonitorAdvice {
		t.Errorf("MonitorAdvice = %q, want %q", rec.MonitorAdvice, MonitorAdvice)
	}
	if rec.YearlyEnergyUsage != 0 {
		t.Errorf("YearlyEnergyUsage = %v, want 0", rec.YearlyEnergyUsage)
	}
}

func TestCalculator_Recommend_WarmerSetPointUsesLessEnergy(t *testing.T) {
	c := NewCalculator(0.233)
	cold := c.Recommend(model.ChecklistAnswers{ULTFreezers: 2, FreezerTemperature: -86})
	warm := c.Recommend(model.ChecklistAnswers{ULTFreezers: 2, FreezerTemperature: -70})

	if warm.YearlyEnergyUsage >= cold.YearlyEnergyUsage {
		t.Errorf("warm %v should be below cold %v", warm.YearlyEnergyUsage, cold.YearlyEnergyUsage)
	}
	if warm.FreezerAdvice != "" {
		t.Errorf("推奨温度以上では温度の助言を出さないべき: %q", warm.FreezerAdvice)
	}
}

func TestFreezerKWhPerYear_ClampsMultiplier(t *testing.T) {
	// -10℃では補正倍率が下限0.2に張り付く
	got := freezerKWhPerYear(1, -10)
	want := 1168.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("freezerKWhPerYear(1, -10) = %v, want %v", got, want)
	}
}
