// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package knn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// epsilon below which a sum of squares counts as zero.
const epsilon = 1e-12

// vectorStats are the mean and population standard deviation of all observed ratings of a
// user (or item), not only of the ratings shared with a peer.
type vectorStats struct {
	mean float64
	std  float64
}

// pair holds two rating vectors restricted to their mutually observed entries.
type pair struct {
	a, b           []float64
	statsA, statsB vectorStats
}

// Similarity computes the raw similarity of a pair. It returns false if the similarity is
// undefined.
type Similarity interface {
	Score(p *pair) (float64, bool)
}

func newSimilarity(method SimMethod) Similarity {
	switch method {
	case Cosine:
		return cosineSimilarity{}
	case AdjustedCosine:
		return adjustedCosineSimilarity{}
	case ZScore:
		return zScoreSimilarity{}
	default:
		return pearsonSimilarity{}
	}
}

// pearsonSimilarity is the correlation coefficient over the shared entries, centered by the
// means of the shared entries.
type pearsonSimilarity struct{}

func (pearsonSimilarity) Score(p *pair) (float64, bool) {
	a := center(p.a, floats.Sum(p.a)/float64(len(p.a)))
	b := center(p.b, floats.Sum(p.b)/float64(len(p.b)))
	return cosine(a, b)
}

// cosineSimilarity is the cosine of the raw shared entries.
type cosineSimilarity struct{}

func (cosineSimilarity) Score(p *pair) (float64, bool) {
	return cosine(p.a, p.b)
}

// adjustedCosineSimilarity is the cosine of the shared entries after subtracting the mean of
// each whole vector.
type adjustedCosineSimilarity struct{}

func (adjustedCosineSimilarity) Score(p *pair) (float64, bool) {
	return cosine(center(p.a, p.statsA.mean), center(p.b, p.statsB.mean))
}

// zScoreSimilarity normalizes each rating by the mean and standard deviation of its whole
// vector and averages the products of z-scores over the shared entries.
type zScoreSimilarity struct{}

func (zScoreSimilarity) Score(p *pair) (float64, bool) {
	if p.statsA.std < epsilon || p.statsB.std < epsilon {
		return 0, false
	}
	za := center(p.a, p.statsA.mean)
	floats.Scale(1/p.statsA.std, za)
	zb := center(p.b, p.statsB.mean)
	floats.Scale(1/p.statsB.std, zb)
	return clamp(floats.Dot(za, zb) / float64(len(za))), true
}

// score applies the undefined-pair rules shared by every method before delegating to sim:
// at least two shared entries and non-zero variance on both sides.
func score(sim Similarity, p *pair) (float64, bool) {
	if len(p.a) < 2 {
		return 0, false
	}
	if sumSquaredDeviations(p.a) < epsilon || sumSquaredDeviations(p.b) < epsilon {
		return 0, false
	}
	return sim.Score(p)
}

// sharpen applies the sensitivity exponent: sign(s) * |s|^alpha.
func sharpen(s, alpha float64) float64 {
	if alpha == 1 {
		return s
	}
	return math.Copysign(math.Pow(math.Abs(s), alpha), s)
}

func cosine(a, b []float64) (float64, bool) {
	normA, normB := floats.Norm(a, 2), floats.Norm(b, 2)
	if normA < epsilon || normB < epsilon {
		return 0, false
	}
	return clamp(floats.Dot(a, b) / (normA * normB)), true
}

func center(x []float64, mean float64) []float64 {
	centered := make([]float64, len(x))
	copy(centered, x)
	floats.AddConst(-mean, centered)
	return centered
}

func sumSquaredDeviations(x []float64) float64 {
	centered := center(x, floats.Sum(x)/float64(len(x)))
	return floats.Dot(centered, centered)
}

func clamp(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
