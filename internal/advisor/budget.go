package advisor

import (
	"fmt"

	"agroia/internal/types"
)

// BudgetTier is one of the preset budget profiles.
type BudgetTier string

const (
	TierSmall  BudgetTier = "small"
	TierMedium BudgetTier = "medium"
	TierLarge  BudgetTier = "large"
	TierCustom BudgetTier = "custom"
)

// Preset budgets, and the custom default when no amount is given.
const (
	BudgetSmall         = 20000.0
	BudgetMedium        = 100000.0
	BudgetLarge         = 500000.0
	DefaultCustomBudget = 50000.0
)

// ResolveBudget returns the budget for a tier. An empty tier is custom; a
// custom tier with a zero amount uses DefaultCustomBudget.
func ResolveBudget(tier BudgetTier, custom float64) (float64, error) {
	switch tier {
	case TierSmall:
		return BudgetSmall, nil
	case TierMedium:
		return BudgetMedium, nil
	case TierLarge:
		return BudgetLarge, nil
	case TierCustom, "":
		if custom == 0 {
			return DefaultCustomBudget, nil
		}
		if custom < 0 {
			return 0, types.NewAppError(types.ErrCodeValidationInvalidBudget, "budget must be positive", nil)
		}
		return custom, nil
	default:
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTier,
			fmt.Sprintf("unknown budget tier %q", tier), nil,
			map[string]any{"allowed": []BudgetTier{TierSmall, TierMedium, TierLarge, TierCustom}})
	}
}
