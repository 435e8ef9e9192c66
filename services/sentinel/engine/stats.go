// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"math"
	"sort"
)

// -----------------------------------------------------------------------------
// Deterministic random numbers
// -----------------------------------------------------------------------------

// lcg is a linear congruential generator. One instance per simulation
// block keeps draws reproducible regardless of worker count.
type lcg struct {
	state uint64
}

func newLCG(seed uint64) *lcg {
	return &lcg{state: seed}
}

func (r *lcg) next() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// float64 returns a uniform draw in [0, 1) using the top 53 bits.
func (r *lcg) float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// norm returns a standard normal draw via Box-Muller.
func (r *lcg) norm() float64 {
	u1 := r.float64()
	for u1 == 0 {
		u1 = r.float64()
	}
	u2 := r.float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// gamma returns a Gamma(alpha, 1) draw using Marsaglia-Tsang, with the
// standard boost for alpha below one.
func (r *lcg) gamma(alpha float64) float64 {
	if alpha < 1 {
		u := r.float64()
		for u == 0 {
			u = r.float64()
		}
		return r.gamma(alpha+1) * math.Pow(u, 1/alpha)
	}

	d := alpha - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := r.norm()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := r.float64()
		for u == 0 {
			u = r.float64()
		}
		if math.Log(u) < 0.5*x*x+d-d*v+d*math.Log(v) {
			return d * v
		}
	}
}

// beta returns a Beta(alpha, beta) draw from two gamma draws.
func (r *lcg) beta(alpha, beta float64) float64 {
	x := r.gamma(alpha)
	y := r.gamma(beta)
	if x+y == 0 {
		return alpha / (alpha + beta)
	}
	return x / (x + y)
}

// splitmix64 spreads consecutive block indexes into well-separated
// stream seeds.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// -----------------------------------------------------------------------------
// Descriptive statistics
// -----------------------------------------------------------------------------

// moments summarizes a sample distribution: mean, population variance,
// standard deviation, skewness, and excess kurtosis.
type moments struct {
	mean     float64
	variance float64
	stdDev   float64
	skewness float64
	kurtosis float64
}

func computeMoments(samples []float64) moments {
	n := float64(len(samples))
	if n == 0 {
		return moments{}
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	m := moments{mean: sum / n}

	var m2, m3, m4 float64
	for _, s := range samples {
		d := s - m.mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n

	m.variance = m2
	m.stdDev = math.Sqrt(m2)
	if m2 > 0 {
		m.skewness = m3 / math.Pow(m2, 1.5)
		m.kurtosis = m4/(m2*m2) - 3
	}
	return m
}

// percentile interpolates the p-th percentile (0-100) from an
// ascending-sorted sample.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)
	if lower+1 >= n {
		return sorted[n-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// binnedMode returns the center of the most populated of `bins` equal
// bins over the sample range. Ties resolve to the lower bin, a
// degenerate range to its single value.
func binnedMode(sorted []float64, bins int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	lo, hi := sorted[0], sorted[n-1]
	if hi == lo || bins < 1 {
		return lo
	}

	width := (hi - lo) / float64(bins)
	counts := make([]int, bins)
	for _, s := range sorted {
		idx := int((s - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return lo + (float64(best)+0.5)*width
}

// sortedCopy returns an ascending-sorted copy, leaving the input
// untouched.
func sortedCopy(samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	sort.Float64s(out)
	return out
}
