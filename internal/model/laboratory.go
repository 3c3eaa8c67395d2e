package model

import "time"

// Laboratory は参加可能な研究室を表す。
// CurrentMembersはmembershipsテーブルから集計した値。
type Laboratory struct {
	ID             string
	Name           string
	Description    string
	Location       string
	Capacity       int
	CurrentMembers int
	CreatedAt      time.Time
}

// AvailableSpots は残り参加可能人数を返す。負にはならない。
func (l *Laboratory) AvailableSpots() int {
	n := l.Capacity - l.CurrentMembers
	if n < 0 {
		return 0
	}
	return n
}

// IsFull は定員に達しているかどうかを返す。
func (l *Laboratory) IsFull() bool {
	return l.AvailableSpots() == 0
}

// LaboratoryWithMembership はユーザーごとの参加状態を付与した研究室。
type LaboratoryWithMembership struct {
	Laboratory
	IsJoined bool
}

// Membership はユーザーの研究室参加を表す。
// 参加時のアンケート回答と算出した推奨値を保持する。
type Membership struct {
	ID              string
	UserID          string
	LaboratoryID    string
	Answers         ChecklistAnswers
	Recommendations LabRecommendations
	JoinedAt        time.Time
}

// ChecklistAnswers は研究室参加時のアンケート回答。
// FreezerTemperatureの0は未回答として扱い、DefaultFreezerTemperatureに置き換える。
type ChecklistAnswers struct {
	MultipleMonitors   bool `json:"multipleMonitors"`
	MaxMonitors        int  `json:"maxMonitors,omitempty"`
	ULTFreezers        int  `json:"ultFreezers"`
	FreezerTemperature int  `json:"freezerTemperature"`
}

// DefaultFreezerTemperature はULTフリーザーの既定設定温度（℃）。
const DefaultFreezerTemperature = -80

// LabRecommendations はアンケート回答から算出した推奨事項。
type LabRecommendations struct {
	MonitorAdvice     string  `json:"monitorAdvice,omitempty"`
	FreezerAdvice     string  `json:"freezerAdvice,omitempty"`
	YearlyEmissions   float64 `json:"yearlyEmissions"`   // kgCO2e
	YearlyEnergyUsage float64 `json:"yearlyEnergyUsage"` // kWh
}
