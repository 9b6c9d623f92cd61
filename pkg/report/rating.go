package report

import (
	"errors"
	"fmt"
)

// Difficulty rating bounds.
const (
	MinRating     = 1
	MaxRating     = 7
	DefaultRating = 4
)

// ErrInvalidRating is returned for a rating outside 1..7.
var ErrInvalidRating = errors.New("invalid difficulty rating")

// ValidateRating checks that r is within MinRating..MaxRating.
func ValidateRating(r int) error {
	if r < MinRating || r > MaxRating {
		return fmt.Errorf(
			"%w: %d not in %d..%d",
			ErrInvalidRating, r, MinRating, MaxRating,
		)
	}
	return nil
}
