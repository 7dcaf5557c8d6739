package rebalance

import "github.com/vadiminshakov/rebalancer/internal/domain"

// ValidateAllocation checks that held and target coin types are the same set.
// Returns *AllocationMismatchError naming every offending coin type.
func ValidateAllocation(assets []domain.HeldAsset, targets []domain.TargetAllocation) error {
	held := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		held[a.CoinType] = struct{}{}
	}

	mismatch := &AllocationMismatchError{}
	targeted := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := targeted[t.CoinType]; dup {
			mismatch.Duplicates = append(mismatch.Duplicates, t.CoinType)
			continue
		}
		targeted[t.CoinType] = struct{}{}
		if _, ok := held[t.CoinType]; !ok {
			mismatch.UnheldTargets = append(mismatch.UnheldTargets, t.CoinType)
		}
	}

	reported := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if _, ok := targeted[a.CoinType]; ok {
			continue
		}
		if _, ok := reported[a.CoinType]; ok {
			continue
		}
		reported[a.CoinType] = struct{}{}
		mismatch.MissingTargets = append(mismatch.MissingTargets, a.CoinType)
	}

	if mismatch.empty() {
		return nil
	}
	return mismatch
}
