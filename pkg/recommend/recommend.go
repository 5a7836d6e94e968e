// Package recommend turns an anomaly decision into status text and advice.
package recommend

import (
	"fmt"

	"github.com/hed1ad/vitalguard/pkg/vitals"
)

// Status values reported to users.
const (
	StatusNormal  = "Normal"
	StatusAnomaly = "Anomaly Detected!"
)

// Rule thresholds. Comparisons are strict.
const (
	LowOxygen     = 94
	LowHeartRate  = 60
	HighHeartRate = 100
)

// Stable is the advice for readings the model considers normal.
const Stable = "Your vital signs are stable. Keep up your healthy habits."

// Unusual is the fallback advice for anomalies no specific rule explains.
const Unusual = "We detected an unusual reading. Monitor your symptoms and rest."

// Result is the classification outcome shown to the user.
type Result struct {
	IsAnomaly      bool   `json:"is_anomaly"`
	Status         string `json:"status"`
	Recommendation string `json:"recommendation"`
}

// Recommend explains a model decision for r. Rules are checked in priority
// order: low oxygen, then heart rate out of range, then the generic message.
func Recommend(r vitals.Reading, isAnomaly bool) Result {
	if !isAnomaly {
		return Result{Status: StatusNormal, Recommendation: Stable}
	}

	res := Result{IsAnomaly: true, Status: StatusAnomaly}
	switch {
	case r.BloodOxygen < LowOxygen:
		res.Recommendation = fmt.Sprintf("Blood oxygen level is low (%d%%). Please rest and take deep breaths.", r.BloodOxygen)
	case r.HeartRate < LowHeartRate || r.HeartRate > HighHeartRate:
		res.Recommendation = fmt.Sprintf("Irregular heart rate detected (%d bpm). Try to relax.", r.HeartRate)
	default:
		res.Recommendation = Unusual
	}
	return res
}
