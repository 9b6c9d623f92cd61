package sequence

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Defaults used when Params fields are left at zero.
const (
	DefaultRequiredMatches = 15
	DefaultMinRun          = 5
	DefaultMaxRun          = 8
)

var (
	// ErrInvalidLevel is returned for an n-back level below 1.
	ErrInvalidLevel = errors.New("invalid n-back level")

	// ErrInvalidParams is returned for unusable run bounds or
	// match counts.
	ErrInvalidParams = errors.New("invalid generator parameters")
)

// Params bounds the shape of generated sequences.
type Params struct {
	// RequiredMatches is the number of forced matches to insert.
	RequiredMatches int `json:"required_matches" yaml:"required_matches"`

	// MinRun and MaxRun bound the number of filler digits drawn
	// before each forced match (inclusive).
	MinRun int `json:"min_run" yaml:"min_run"`
	MaxRun int `json:"max_run" yaml:"max_run"`
}

// DefaultParams returns 15 matches with filler runs of 5 to 8.
func DefaultParams() Params {
	return Params{
		RequiredMatches: DefaultRequiredMatches,
		MinRun:          DefaultMinRun,
		MaxRun:          DefaultMaxRun,
	}
}

// Validate checks that the parameters can produce a sequence.
func (p Params) Validate() error {
	if p.RequiredMatches < 0 {
		return fmt.Errorf(
			"%w: required matches %d", ErrInvalidParams,
			p.RequiredMatches,
		)
	}
	if p.MinRun < 1 || p.MaxRun < p.MinRun {
		return fmt.Errorf(
			"%w: run bounds [%d,%d]", ErrInvalidParams,
			p.MinRun, p.MaxRun,
		)
	}
	return nil
}

// Generator produces sequences from an injected random source.
// It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	params Params
}

// NewGenerator creates a Generator drawing from rng. A nil rng
// falls back to a time-seeded PCG source.
func NewGenerator(rng *rand.Rand, params Params) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng, params: params}
}

// NewSeeded creates a Generator with a reproducible PCG source.
func NewSeeded(seed uint64, params Params) *Generator {
	return NewGenerator(
		rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		params,
	)
}

// Params returns the generator's parameters.
func (g *Generator) Params() Params { return g.params }

// Generate builds a new sequence for level.
func (g *Generator) Generate(level int) (Sequence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Generate(
		g.rng, level, g.params.RequiredMatches,
		g.params.MinRun, g.params.MaxRun,
	)
}

// Generate builds a sequence with exactly requiredMatches forced
// matches for the given level. Before each forced match a run of
// minRun..maxRun filler digits is drawn; a filler that would equal
// the digit level positions back is redrawn. A match is only
// forced once the sequence holds at least level digits, so short
// prefixes simply keep accumulating filler runs. One terminal
// filler run follows the last match.
func Generate(
	rng *rand.Rand,
	level, requiredMatches, minRun, maxRun int,
) (Sequence, error) {
	if level < 1 {
		return Sequence{}, fmt.Errorf(
			"%w: %d", ErrInvalidLevel, level,
		)
	}
	p := Params{
		RequiredMatches: requiredMatches,
		MinRun:          minRun,
		MaxRun:          maxRun,
	}
	if err := p.Validate(); err != nil {
		return Sequence{}, err
	}

	digits := make([]int, 0, requiredMatches*(maxRun+1)+maxRun)
	forced := make([]int, 0, requiredMatches)

	for len(forced) < requiredMatches {
		digits = appendFillers(rng, digits, level, minRun, maxRun)
		if len(digits) >= level {
			forced = append(forced, len(digits))
			digits = append(digits, digits[len(digits)-level])
		}
	}
	digits = appendFillers(rng, digits, level, minRun, maxRun)

	return Sequence{digits: digits, level: level, forced: forced}, nil
}

func appendFillers(
	rng *rand.Rand,
	digits []int,
	level, minRun, maxRun int,
) []int {
	run := minRun + rng.IntN(maxRun-minRun+1)
	for range run {
		d := rng.IntN(10)
		if len(digits) >= level {
			back := digits[len(digits)-level]
			for d == back {
				d = rng.IntN(10)
			}
		}
		digits = append(digits, d)
	}
	return digits
}
