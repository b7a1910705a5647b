package achievement

import (
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
)

// Progress is how far a user is towards one achievement.
type Progress struct {
	AchievementID ID    `json:"achievement_id"`
	Current       int64 `json:"current"`
	Required      int64 `json:"required"`
}

// Complete reports whether the threshold is reached.
func (p Progress) Complete() bool {
	return p.Current >= p.Required
}

// Evaluator evaluates catalog predicates against canonical stats.
type Evaluator struct {
	defs []Definition
}

// NewEvaluator creates an evaluator over the built-in catalog.
func NewEvaluator() *Evaluator {
	return &Evaluator{defs: Catalog()}
}

// NewEvaluatorWithCatalog creates an evaluator over a custom catalog.
func NewEvaluatorWithCatalog(defs []Definition) *Evaluator {
	return &Evaluator{defs: defs}
}

// Definitions returns the catalog the evaluator uses.
func (e *Evaluator) Definitions() []Definition {
	return e.defs
}

// Progress returns one entry per catalog item, in catalog order. Current is
// capped at Required.
func (e *Evaluator) Progress(stats progress.Stats) []Progress {
	out := make([]Progress, 0, len(e.defs))
	for _, def := range e.defs {
		current := def.Metric.Value(stats)
		if current > def.Threshold {
			current = def.Threshold
		}
		out = append(out, Progress{
			AchievementID: def.ID,
			Current:       current,
			Required:      def.Threshold,
		})
	}
	return out
}

// Unlockable returns definitions whose predicate holds and that are not in
// earned, in catalog order.
func (e *Evaluator) Unlockable(stats progress.Stats, earned []progress.EarnedAchievement) []Definition {
	have := make(map[ID]struct{}, len(earned))
	for _, a := range earned {
		have[ID(a.AchievementID)] = struct{}{}
	}

	var out []Definition
	for _, def := range e.defs {
		if _, ok := have[def.ID]; ok {
			continue
		}
		if def.IsMet(stats) {
			out = append(out, def)
		}
	}
	return out
}

// Split partitions the catalog into earned and available definitions.
func (e *Evaluator) Split(earned []progress.EarnedAchievement) (earnedDefs, available []Definition) {
	have := make(map[ID]struct{}, len(earned))
	for _, a := range earned {
		have[ID(a.AchievementID)] = struct{}{}
	}
	for _, def := range e.defs {
		if _, ok := have[def.ID]; ok {
			earnedDefs = append(earnedDefs, def)
		} else {
			available = append(available, def)
		}
	}
	return earnedDefs, available
}
