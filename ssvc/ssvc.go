// Package ssvc implements the SSVC deployer decision tree. The decision is a
// fixed lookup over five categorical inputs; it is never stored independently
// of them and never writable directly.
package ssvc

import (
	"errors"
	"fmt"

	"github.com/riskhub/riskhub-backend/config"
	"github.com/riskhub/riskhub-backend/model"
)

// ErrInvalidInput marks values outside the input enumerations.
var ErrInvalidInput = errors.New("invalid ssvc input")

// Input values.
const (
	ExploitationNone   = "none"
	ExploitationPoc    = "poc"
	ExploitationActive = "active"

	AutomatableYes = "yes"
	AutomatableNo  = "no"

	TechnicalImpactPartial = "partial"
	TechnicalImpactTotal   = "total"

	MissionMinimal   = "minimal"
	MissionSupport   = "support"
	MissionEssential = "essential"

	SafetyMinimal     = "minimal"
	SafetySignificant = "significant"
)

// Decisions, in escalating order.
const (
	DecisionDefer      = "defer"
	DecisionScheduled  = "scheduled"
	DecisionOutOfCycle = "out_of_cycle"
	DecisionImmediate  = "immediate"
)

// Inputs are the five categorical dimensions of one assessment.
type Inputs struct {
	Exploitation      string `json:"exploitation"`
	Automatable       string `json:"automatable"`
	TechnicalImpact   string `json:"technical_impact"`
	MissionPrevalence string `json:"mission_prevalence"`
	SafetyImpact      string `json:"safety_impact"`
}

// Validate rejects values outside the enumerations.
func (in Inputs) Validate() error {
	switch in.Exploitation {
	case ExploitationNone, ExploitationPoc, ExploitationActive:
	default:
		return fmt.Errorf("%w: exploitation %q", ErrInvalidInput, in.Exploitation)
	}
	switch in.Automatable {
	case AutomatableYes, AutomatableNo:
	default:
		return fmt.Errorf("%w: automatable %q", ErrInvalidInput, in.Automatable)
	}
	switch in.TechnicalImpact {
	case TechnicalImpactPartial, TechnicalImpactTotal:
	default:
		return fmt.Errorf("%w: technical_impact %q", ErrInvalidInput, in.TechnicalImpact)
	}
	switch in.MissionPrevalence {
	case MissionMinimal, MissionSupport, MissionEssential:
	default:
		return fmt.Errorf("%w: mission_prevalence %q", ErrInvalidInput, in.MissionPrevalence)
	}
	switch in.SafetyImpact {
	case SafetyMinimal, SafetySignificant:
	default:
		return fmt.Errorf("%w: safety_impact %q", ErrInvalidInput, in.SafetyImpact)
	}
	return nil
}

// Map returns the inputs as a string map for history rows.
func (in Inputs) Map() map[string]string {
	return map[string]string{
		"exploitation":       in.Exploitation,
		"automatable":        in.Automatable,
		"technical_impact":   in.TechnicalImpact,
		"mission_prevalence": in.MissionPrevalence,
		"safety_impact":      in.SafetyImpact,
	}
}

// Decide runs the deployer tree. The table follows the CISA SSVC deployer
// guidance: exploitation level sets the floor, automatability and the
// combined mission/safety relevance escalate it.
func Decide(in Inputs) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	relevance := missionSafetyRelevance(in.MissionPrevalence, in.SafetyImpact)

	switch in.Exploitation {
	case ExploitationNone:
		if in.Automatable == AutomatableYes && relevance == relevanceHigh {
			return DecisionScheduled, nil
		}
		return DecisionDefer, nil

	case ExploitationPoc:
		if relevance == relevanceHigh {
			if in.Automatable == AutomatableYes && in.TechnicalImpact == TechnicalImpactTotal {
				return DecisionOutOfCycle, nil
			}
			return DecisionScheduled, nil
		}
		if in.Automatable == AutomatableYes {
			return DecisionScheduled, nil
		}
		return DecisionDefer, nil

	default: // active
		if relevance == relevanceHigh {
			if in.Automatable == AutomatableYes || in.TechnicalImpact == TechnicalImpactTotal {
				return DecisionImmediate, nil
			}
			return DecisionOutOfCycle, nil
		}
		if in.Automatable == AutomatableYes {
			if in.TechnicalImpact == TechnicalImpactTotal {
				return DecisionImmediate, nil
			}
			return DecisionOutOfCycle, nil
		}
		if in.TechnicalImpact == TechnicalImpactTotal {
			return DecisionOutOfCycle, nil
		}
		return DecisionScheduled, nil
	}
}

type relevance int

const (
	relevanceLow relevance = iota
	relevanceMedium
	relevanceHigh
)

// missionSafetyRelevance combines mission prevalence and safety impact the
// way the deployer tree's "human impact" dimension does. Support-role
// mission with minimal safety impact is medium, not high: it escalates an
// active exploit to out_of_cycle but needs automatability or a high
// combined relevance before anything lands at immediate.
func missionSafetyRelevance(mission, safety string) relevance {
	if safety == SafetySignificant || mission == MissionEssential {
		return relevanceHigh
	}
	if mission == MissionSupport {
		return relevanceMedium
	}
	return relevanceLow
}

// AutoDerived holds feed-derived input values with their provenance flags.
type AutoDerived struct {
	Exploitation     string
	ExploitationAuto bool
	Automatable      string
	AutomatableAuto  bool
}

// AutoAssess derives exploitation and automatable from feed evidence: KEV
// membership means active exploitation, a public PoC reference means poc, and
// an EPSS score above the policy threshold means automatable.
func AutoAssess(vuln model.VulnerabilityRecord, cfg config.SsvcConfig) AutoDerived {
	derived := AutoDerived{
		Exploitation: ExploitationNone,
		Automatable:  AutomatableNo,
	}

	switch {
	case vuln.KevListed:
		derived.Exploitation = ExploitationActive
		derived.ExploitationAuto = true
	case vuln.ExploitEvidence:
		derived.Exploitation = ExploitationPoc
		derived.ExploitationAuto = true
	}

	if vuln.EpssScore > cfg.EpssAutomatableThreshold {
		derived.Automatable = AutomatableYes
		derived.AutomatableAuto = true
	}

	return derived
}
