package breath

import "fmt"

// ErrUnknownPattern is returned by LookupPattern for an unknown ID.
var ErrUnknownPattern = fmt.Errorf("unknown breath pattern")

// builtinPatterns is the static protocol catalogue. Durations are in
// seconds; patterns are value types so lookups hand out copies.
var builtinPatterns = []Pattern{
	{
		ID:       "box-4",
		Name:     "Box Breathing",
		Category: CategoryBalanced,
		InhaleSec: 4, HoldInSec: 4, ExhaleSec: 4, HoldOutSec: 4,
		Cycles: 10,
		Tier:   1,
	},
	{
		ID:       "coherent-55",
		Name:     "Coherent Breathing",
		Category: CategoryParasympathetic,
		InhaleSec: 5.5, HoldInSec: 0, ExhaleSec: 5.5, HoldOutSec: 0,
		Cycles: 15,
		Tier:   1,
	},
	{
		ID:       "relax-478",
		Name:     "4-7-8 Relaxation",
		Category: CategoryParasympathetic,
		InhaleSec: 4, HoldInSec: 7, ExhaleSec: 8, HoldOutSec: 0,
		Cycles: 6,
		Tier:   2,
	},
	{
		ID:       "extended-exhale",
		Name:     "Extended Exhale",
		Category: CategoryParasympathetic,
		InhaleSec: 4, HoldInSec: 2, ExhaleSec: 6, HoldOutSec: 2,
		Cycles: 8,
		Tier:   2,
	},
	{
		ID:       "energize-202",
		Name:     "Energizing Breath",
		Category: CategorySympathetic,
		InhaleSec: 2, HoldInSec: 0, ExhaleSec: 2, HoldOutSec: 0,
		Cycles: 20,
		Tier:   3,
	},
}

// LookupPattern returns the builtin pattern with the given ID.
func LookupPattern(id string) (Pattern, error) {
	for _, p := range builtinPatterns {
		if p.ID == id {
			return p, nil
		}
	}
	return Pattern{}, fmt.Errorf("%w: %q", ErrUnknownPattern, id)
}

// Patterns returns a copy of the builtin catalogue.
func Patterns() []Pattern {
	out := make([]Pattern, len(builtinPatterns))
	copy(out, builtinPatterns)
	return out
}
