package combat

import "errors"

var (
	ErrUnknownShipType    = errors.New("unknown ship type")
	ErrInvalidComposition = errors.New("invalid fleet composition")
	ErrInvalidCombatant   = errors.New("invalid combatant")
	ErrInvalidAttackType  = errors.New("invalid attack type")
	ErrInvalidCatalog     = errors.New("invalid ship catalog")

	// ErrRoundLimitExceeded is raised by the round loop when the cap is hit.
	// Resolve turns it into a forced decision, callers never receive it.
	ErrRoundLimitExceeded = errors.New("round limit exceeded")
)

// IsInputError reports whether err comes from caller input (a 4xx for the API)
// rather than from the engine configuration.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidComposition) ||
		errors.Is(err, ErrInvalidCombatant) ||
		errors.Is(err, ErrInvalidAttackType)
}
