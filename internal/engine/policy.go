package engine

import "agroia/internal/climate"

// Observation labels attached to each result.
const (
	ObservationOutOfWindow = climate.FallbackObservation
	ObservationExcessRain  = "Excesso Chuva"
	ObservationHighRisk    = "Risco Alto"
	ObservationMediumRisk  = "Risco Médio"
	ObservationFavorable   = "Favorável"
)

// Policy thresholds.
const (
	excessRainRiskFloor = 50.0
	highRiskThreshold   = 40.0
	mediumRiskThreshold = 20.0

	severeLossRisk     = 50.0
	severeLossFraction = 0.95
	partialLossRisk    = 30.0
	partialLossFrac    = 0.50

	safetyMediumRisk = 20.0
	safetyHighRisk   = 40.0
	safetyFull       = 1.0
	safetyHalf       = 0.5
	safetyMinimal    = 0.1
)

// Assessment is the mutable state the policy rules operate on for one crop.
type Assessment struct {
	Crop          string
	RiskScore     float64
	RainfallMm    float64
	RainSensitive bool
	Observation   string
}

// PolicyRule adjusts an Assessment. Apply returns true when the rule settled
// the observation, which stops evaluation of later rules.
type PolicyRule struct {
	Name  string
	Apply func(a *Assessment) bool
}

// RainSensitivityRule raises the risk of rain-sensitive crops to at least 50
// when the decile's rainfall is heavy.
var RainSensitivityRule = PolicyRule{
	Name: "rain_sensitivity",
	Apply: func(a *Assessment) bool {
		if !a.RainSensitive || !climate.IsHeavyRain(a.RainfallMm) {
			return false
		}
		if a.RiskScore < excessRainRiskFloor {
			a.RiskScore = excessRainRiskFloor
		}
		a.Observation = ObservationExcessRain
		return true
	},
}

// RiskTierRule labels the assessment by risk tier. It always settles.
var RiskTierRule = PolicyRule{
	Name: "risk_tier",
	Apply: func(a *Assessment) bool {
		switch {
		case a.RiskScore >= highRiskThreshold:
			a.Observation = ObservationHighRisk
		case a.RiskScore >= mediumRiskThreshold:
			a.Observation = ObservationMediumRisk
		default:
			a.Observation = ObservationFavorable
		}
		return true
	},
}

// DefaultRules returns the rules in evaluation order: rain sensitivity first,
// then risk tiers. The sensitivity rule can raise risk, so the tier rule must
// never run ahead of it.
func DefaultRules() []PolicyRule {
	return []PolicyRule{RainSensitivityRule, RiskTierRule}
}

// ApplyRules runs rules in order until one settles the observation.
func ApplyRules(rules []PolicyRule, a *Assessment) {
	for _, r := range rules {
		if r.Apply(a) {
			return
		}
	}
}

// LossFraction returns the post-harvest loss applied for a risk score:
// 0.95 at risk >= 50, 0.50 for risk in (30, 50), otherwise the crop default.
func LossFraction(risk, cropDefault float64) float64 {
	switch {
	case risk >= severeLossRisk:
		return severeLossFraction
	case risk > partialLossRisk:
		return partialLossFrac
	default:
		return cropDefault
	}
}

// SafetyFactor returns 1.0 for risk <= 20, 0.5 for risk in (20, 40] and 0.1
// above 40.
func SafetyFactor(risk float64) float64 {
	switch {
	case risk > safetyHighRisk:
		return safetyMinimal
	case risk > safetyMediumRisk:
		return safetyHalf
	default:
		return safetyFull
	}
}
