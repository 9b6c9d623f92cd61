// Package sequence generates n-back stimulus sequences: digit
// streams with a fixed number of deliberately inserted matches and
// no accidental ones.
package sequence

// Sequence is an immutable stream of digits generated for one
// n-back level. Digits are integers in [0,9], indexed from 0.
type Sequence struct {
	digits []int
	level  int
	forced []int
}

// New wraps a fixed digit list as a Sequence for the given level.
// Forced positions are derived from the digits, which makes New
// suitable for scripted sequences (tutorials, tests).
func New(level int, digits []int) Sequence {
	d := make([]int, len(digits))
	copy(d, digits)
	s := Sequence{digits: d, level: level}
	s.forced = s.MatchPositions()
	return s
}

// Len returns the number of digits in the sequence.
func (s Sequence) Len() int { return len(s.digits) }

// Level returns the n-back distance the sequence was built for.
func (s Sequence) Level() int { return s.level }

// At returns the digit at position i.
func (s Sequence) At(i int) int { return s.digits[i] }

// Digits returns a copy of the underlying digits.
func (s Sequence) Digits() []int {
	d := make([]int, len(s.digits))
	copy(d, s.digits)
	return d
}

// ForcedPositions returns the positions where a match was
// deliberately inserted.
func (s Sequence) ForcedPositions() []int {
	p := make([]int, len(s.forced))
	copy(p, s.forced)
	return p
}

// IsMatch reports whether position i repeats the digit shown
// level positions earlier.
func (s Sequence) IsMatch(i int) bool {
	if s.level < 1 || i < s.level || i >= len(s.digits) {
		return false
	}
	return s.digits[i] == s.digits[i-s.level]
}

// MatchPositions enumerates every position that matches the digit
// level positions back, whether inserted or not.
func (s Sequence) MatchPositions() []int {
	var out []int
	for i := range s.digits {
		if s.IsMatch(i) {
			out = append(out, i)
		}
	}
	return out
}
