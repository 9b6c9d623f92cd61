package orchestrator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"digital.vasic.nback/pkg/task"
)

// ErrInvalidOrder is returned for an empty order or one holding
// an unsupported level.
var ErrInvalidOrder = errors.New("invalid level order")

// Order is the sequence of levels a participant runs.
type Order []task.Level

// Permutations lists every ordering of the three levels. A
// participant's order is picked from it by index.
var Permutations = []Order{
	{task.Level1, task.Level2, task.Level3},
	{task.Level1, task.Level3, task.Level2},
	{task.Level2, task.Level1, task.Level3},
	{task.Level2, task.Level3, task.Level1},
	{task.Level3, task.Level1, task.Level2},
	{task.Level3, task.Level2, task.Level1},
}

// ParticipantOrder returns the permutation for a participant
// index. Indices wrap modulo the table size; negative indices are
// folded onto it as well.
func ParticipantOrder(index int) Order {
	n := len(Permutations)
	i := ((index % n) + n) % n
	return Permutations[i].Clone()
}

// ShuffledOrder returns a random permutation of the three levels.
func ShuffledOrder(rng *rand.Rand) Order {
	o := Permutations[0].Clone()
	o.shuffle(rng)
	return o
}

// ParseOrder parses a comma separated list such as "2,3,1".
func ParseOrder(s string) (Order, error) {
	var o Order
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOrder, part)
		}
		o = append(o, task.Level(n))
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the order is non-empty and holds only
// supported levels.
func (o Order) Validate() error {
	if len(o) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidOrder)
	}
	for i, l := range o {
		if !l.Valid() {
			return fmt.Errorf(
				"%w: position %d has level %d", ErrInvalidOrder, i, l,
			)
		}
	}
	return nil
}

// Clone returns a copy of o.
func (o Order) Clone() Order {
	c := make(Order, len(o))
	copy(c, o)
	return c
}

// String renders the order as "1,2,3".
func (o Order) String() string {
	parts := make([]string, len(o))
	for i, l := range o {
		parts[i] = strconv.Itoa(int(l))
	}
	return strings.Join(parts, ",")
}

func (o Order) shuffle(rng *rand.Rand) {
	rng.Shuffle(len(o), func(i, j int) {
		o[i], o[j] = o[j], o[i]
	})
}
