package brand

import (
	"github.com/jonathan/cashback-scout/internal/brands"
)

// Tally is the number of candidates that normalized to each registry key.
// Keys with zero votes are omitted.
type Tally map[string]int

// Vote counts, for every registry key, the candidates that normalize exactly
// to it and returns the key with strictly the most votes. Ties go to the key
// registered first. The winner is always a registry key; nil means no
// candidate matched anything.
func Vote(candidates []Candidate, reg *brands.Registry) (*brands.Record, Tally) {
	tally := Tally{}
	if reg.Len() == 0 || len(candidates) == 0 {
		return nil, tally
	}

	for _, c := range candidates {
		key := brands.Normalize(c.Value)
		if key == "" {
			continue
		}
		if _, ok := reg.Get(key); ok {
			tally[key]++
		}
	}

	var (
		winner string
		best   int
	)
	for _, key := range reg.Keys() {
		if n := tally[key]; n > best {
			winner, best = key, n
		}
	}
	if best == 0 {
		return nil, tally
	}

	rec, _ := reg.Get(winner)
	return &rec, tally
}
