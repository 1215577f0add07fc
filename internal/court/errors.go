package court

import "errors"

var (
	// ErrInvalidEvidence is returned when a producer emits a malformed evidence item.
	ErrInvalidEvidence = errors.New("court: invalid evidence item")

	// ErrInvalidOpinion is returned when a producer emits a malformed opinion.
	ErrInvalidOpinion = errors.New("court: invalid opinion")
)
