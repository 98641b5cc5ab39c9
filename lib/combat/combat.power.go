package combat

import "fmt"

const (
	// Normalization only scales effective power to a convenient magnitude.
	Normalization = 1000.0

	ExperienceBonusPerPoint = 0.002
	MoraleBonusPerPoint     = 0.01
)

// PowerAssessment summarises the fighting strength of a fleet.
type PowerAssessment struct {
	TotalAttack     int     `json:"total_attack"`
	TotalHealth     int     `json:"total_health"`
	Ships           int     `json:"ships"`
	ExperienceBonus float64 `json:"experience_bonus"`
	MoraleBonus     float64 `json:"morale_bonus"`
	EffectivePower  float64 `json:"effective_power"`
	Empty           bool    `json:"empty"`
}

// Calculator derives power assessments from fleet snapshots.
type Calculator struct {
	catalog Catalog
}

func NewCalculator(catalog Catalog) *Calculator {
	return &Calculator{catalog: catalog}
}

func (c *Calculator) Catalog() Catalog {
	return c.catalog
}

// Assess computes the power of fleet. It has no side effects: the same
// snapshot always yields the same assessment.
func (c *Calculator) Assess(fleet FleetSnapshot) (PowerAssessment, error) {
	var assessment PowerAssessment

	if fleet.Experience < 0 {
		return PowerAssessment{}, fmt.Errorf("%w: negative experience %d", ErrInvalidComposition, fleet.Experience)
	}

	for _, ship_type := range shipTypes(fleet.Composition) {
		count := fleet.Composition[ship_type]
		if count < 0 {
			return PowerAssessment{}, fmt.Errorf("%w: %d %s", ErrInvalidComposition, count, ship_type)
		}
		if count == 0 {
			continue
		}
		ship_stats, err := c.catalog.StatsFor(ship_type)
		if err != nil {
			return PowerAssessment{}, err
		}
		assessment.TotalAttack += count * ship_stats.Attack
		assessment.TotalHealth += count * ship_stats.Health
		assessment.Ships += count
	}

	assessment.ExperienceBonus = ExperienceBonus(fleet.Experience)
	assessment.MoraleBonus = MoraleBonus(fleet.Morale)

	if assessment.Ships == 0 {
		assessment.Empty = true
		return assessment, nil
	}

	assessment.EffectivePower = float64(assessment.TotalAttack) *
		float64(assessment.TotalHealth) *
		assessment.ExperienceBonus *
		assessment.MoraleBonus /
		Normalization

	return assessment, nil
}

// ExperienceBonus is 0.2% per experience point, without upper bound.
func ExperienceBonus(experience int) float64 {
	if experience < 0 {
		experience = 0
	}
	return 1 + float64(experience)*ExperienceBonusPerPoint
}

// MoraleBonus is ±1% per point away from BaselineMorale, never below zero.
func MoraleBonus(morale int) float64 {
	bonus := 1 + float64(morale-BaselineMorale)*MoraleBonusPerPoint
	if bonus < 0 {
		return 0
	}
	return bonus
}
