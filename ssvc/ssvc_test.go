package ssvc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/config"
	"github.com/riskhub/riskhub-backend/model"
	"github.com/riskhub/riskhub-backend/ssvc"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   ssvc.Inputs
		want string
	}{
		{
			name: "worst case is immediate",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationActive,
				Automatable:       ssvc.AutomatableYes,
				TechnicalImpact:   ssvc.TechnicalImpactTotal,
				MissionPrevalence: ssvc.MissionEssential,
				SafetyImpact:      ssvc.SafetySignificant,
			},
			want: ssvc.DecisionImmediate,
		},
		{
			name: "best case is defer",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationNone,
				Automatable:       ssvc.AutomatableNo,
				TechnicalImpact:   ssvc.TechnicalImpactPartial,
				MissionPrevalence: ssvc.MissionMinimal,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionDefer,
		},
		{
			name: "active on low relevance schedules",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationActive,
				Automatable:       ssvc.AutomatableNo,
				TechnicalImpact:   ssvc.TechnicalImpactPartial,
				MissionPrevalence: ssvc.MissionMinimal,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionScheduled,
		},
		{
			name: "active automatable total on low relevance is immediate",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationActive,
				Automatable:       ssvc.AutomatableYes,
				TechnicalImpact:   ssvc.TechnicalImpactTotal,
				MissionPrevalence: ssvc.MissionMinimal,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionImmediate,
		},
		{
			name: "active total on support mission stays out of cycle",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationActive,
				Automatable:       ssvc.AutomatableNo,
				TechnicalImpact:   ssvc.TechnicalImpactTotal,
				MissionPrevalence: ssvc.MissionSupport,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionOutOfCycle,
		},
		{
			name: "active non-automatable essential is out of cycle",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationActive,
				Automatable:       ssvc.AutomatableNo,
				TechnicalImpact:   ssvc.TechnicalImpactPartial,
				MissionPrevalence: ssvc.MissionEssential,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionOutOfCycle,
		},
		{
			name: "poc automatable total essential is out of cycle",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationPoc,
				Automatable:       ssvc.AutomatableYes,
				TechnicalImpact:   ssvc.TechnicalImpactTotal,
				MissionPrevalence: ssvc.MissionEssential,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionOutOfCycle,
		},
		{
			name: "poc on support scope defers without automation",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationPoc,
				Automatable:       ssvc.AutomatableNo,
				TechnicalImpact:   ssvc.TechnicalImpactTotal,
				MissionPrevalence: ssvc.MissionSupport,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionDefer,
		},
		{
			name: "no exploitation but wormable on essential schedules",
			in: ssvc.Inputs{
				Exploitation:      ssvc.ExploitationNone,
				Automatable:       ssvc.AutomatableYes,
				TechnicalImpact:   ssvc.TechnicalImpactTotal,
				MissionPrevalence: ssvc.MissionEssential,
				SafetyImpact:      ssvc.SafetyMinimal,
			},
			want: ssvc.DecisionScheduled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ssvc.Decide(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideExhaustive(t *testing.T) {
	// Every combination of the five enumerations yields a valid decision.
	valid := map[string]bool{
		ssvc.DecisionDefer:      true,
		ssvc.DecisionScheduled:  true,
		ssvc.DecisionOutOfCycle: true,
		ssvc.DecisionImmediate:  true,
	}
	count := 0
	for _, exploitation := range []string{ssvc.ExploitationNone, ssvc.ExploitationPoc, ssvc.ExploitationActive} {
		for _, automatable := range []string{ssvc.AutomatableYes, ssvc.AutomatableNo} {
			for _, impact := range []string{ssvc.TechnicalImpactPartial, ssvc.TechnicalImpactTotal} {
				for _, mission := range []string{ssvc.MissionMinimal, ssvc.MissionSupport, ssvc.MissionEssential} {
					for _, safety := range []string{ssvc.SafetyMinimal, ssvc.SafetySignificant} {
						got, err := ssvc.Decide(ssvc.Inputs{
							Exploitation:      exploitation,
							Automatable:       automatable,
							TechnicalImpact:   impact,
							MissionPrevalence: mission,
							SafetyImpact:      safety,
						})
						require.NoError(t, err)
						assert.True(t, valid[got])
						count++
					}
				}
			}
		}
	}
	assert.Equal(t, 72, count)
}

func TestDecideRejectsInvalidInputs(t *testing.T) {
	_, err := ssvc.Decide(ssvc.Inputs{
		Exploitation:      "weaponized",
		Automatable:       ssvc.AutomatableNo,
		TechnicalImpact:   ssvc.TechnicalImpactPartial,
		MissionPrevalence: ssvc.MissionMinimal,
		SafetyImpact:      ssvc.SafetyMinimal,
	})
	require.ErrorIs(t, err, ssvc.ErrInvalidInput)
	assert.Contains(t, err.Error(), "exploitation")
}

func TestAutoAssess(t *testing.T) {
	cfg := config.SsvcConfig{EpssAutomatableThreshold: 0.1}

	kevListed := model.VulnerabilityRecord{KevListed: true, EpssScore: 0.95}
	derived := ssvc.AutoAssess(kevListed, cfg)
	assert.Equal(t, ssvc.ExploitationActive, derived.Exploitation)
	assert.True(t, derived.ExploitationAuto)
	assert.Equal(t, ssvc.AutomatableYes, derived.Automatable)
	assert.True(t, derived.AutomatableAuto)

	pocOnly := model.VulnerabilityRecord{ExploitEvidence: true, EpssScore: 0.05}
	derived = ssvc.AutoAssess(pocOnly, cfg)
	assert.Equal(t, ssvc.ExploitationPoc, derived.Exploitation)
	assert.Equal(t, ssvc.AutomatableNo, derived.Automatable)
	assert.False(t, derived.AutomatableAuto)

	quiet := model.VulnerabilityRecord{}
	derived = ssvc.AutoAssess(quiet, cfg)
	assert.Equal(t, ssvc.ExploitationNone, derived.Exploitation)
	assert.False(t, derived.ExploitationAuto)

	// Threshold is strict: a score exactly at it does not flip automatable.
	atThreshold := model.VulnerabilityRecord{EpssScore: 0.1}
	derived = ssvc.AutoAssess(atThreshold, cfg)
	assert.Equal(t, ssvc.AutomatableNo, derived.Automatable)
}
