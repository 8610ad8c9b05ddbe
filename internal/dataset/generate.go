package dataset

import (
	"math/rand"
)

// GenerateOptions control synthetic survey generation.
type GenerateOptions struct {
	Points      int     // number of records; 0 means 1000
	TargetDepth float64 // burial target in meters; 0 means 1.5
	Seed        int64   // random seed; 0 means 42
}

// Generate builds a synthetic burial survey with known defects planted
// in it: three under-burial sections of decreasing severity, a few
// physically impossible readings, and a handful of sudden spikes. The
// same options always produce the same dataset, which makes generated
// surveys usable as regression fixtures.
func Generate(opts GenerateOptions) *Dataset {
	n := opts.Points
	if n <= 0 {
		n = 1000
	}
	target := opts.TargetDepth
	if target <= 0 {
		target = 1.5
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 42
	}

	rng := rand.New(rand.NewSource(seed))

	position := make([]float64, n)
	kp := make([]float64, n)
	depth := make([]float64, n)
	for i := 0; i < n; i++ {
		position[i] = float64(i)
		kp[i] = float64(i) / 1000.0
		depth[i] = rng.NormFloat64()*0.15*target + 1.2*target
	}

	fill := func(from, to int, v float64) {
		for i := from; i < to && i < n; i++ {
			depth[i] = v
		}
	}
	fill(n*20/100, n*25/100, target-0.3)
	fill(n*60/100, n*63/100, target-0.7)
	fill(n*80/100, n*81/100, target-0.1)

	// A few readings outside any plausible trenching envelope.
	for i := 0; i < 3; i++ {
		depth[rng.Intn(n)] = 5.0
	}
	for i := 0; i < 2; i++ {
		depth[rng.Intn(n)] = -0.1
	}

	// Sudden jumps relative to the previous record.
	if n > 20 {
		for i := 0; i < 5; i++ {
			idx := 10 + rng.Intn(n-20)
			depth[idx] = depth[idx-1] + 1.5
		}
	}

	ds := New(n)
	_ = ds.SetFloats("Position", position)
	_ = ds.SetFloats("KP", kp)
	_ = ds.SetFloats("DOB", depth)
	return ds
}
