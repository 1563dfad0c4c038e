package service

import (
	"math/rand"

	"geopack/internal/services/locations/domain"
)

// candidate is one country surviving the rules filter, carrying its eligible
// record count and its selection weight
type candidate struct {
	country string
	count   int64
	weight  float64
}

// applyWeights fills each candidate's weight per the distribution strategy and
// returns the total. Candidates with zero weight are kept in place; the draw
// simply never lands on them
func applyWeights(cands []candidate, d domain.Distribution, custom map[string]float64) float64 {
	var total float64
	for i := range cands {
		var w float64
		switch d {
		case domain.DistributionEqual:
			w = 1
		case domain.DistributionCustom:
			w = custom[cands[i].country]
		default: // proportional
			w = float64(cands[i].count)
		}
		if w < 0 {
			w = 0
		}
		cands[i].weight = w
		total += w
	}
	return total
}

// drawWeighted picks one candidate by cumulative weighted random selection.
// total must be the sum of weights and positive
func drawWeighted(rng *rand.Rand, cands []candidate, total float64) candidate {
	x := rng.Float64() * total
	var cum float64
	for _, c := range cands {
		cum += c.weight
		if x < cum {
			return c
		}
	}
	// float accumulation can leave x a hair past the last boundary
	return cands[len(cands)-1]
}

// drawBucket picks an eligible bucket index weighted by record count.
// counts must sum to total and total must be positive
func drawBucket(rng *rand.Rand, counts []int64, total int64) int {
	x := rng.Int63n(total)
	var cum int64
	for i, n := range counts {
		cum += n
		if x < cum {
			return i
		}
	}
	return len(counts) - 1
}
