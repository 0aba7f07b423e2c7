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
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gorse-io/knn/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simMethodList = []SimMethod{Pearson, Cosine, AdjustedCosine, ZScore}

// newRandomRatings generates integer ratings in [1, 5] with the given density.
func newRandomRatings(seed uint64, rows, cols int, density float64) *dataset.RatingMatrix {
	rng := rand.New(rand.NewPCG(seed, seed))
	ratings := dataset.NewEmptyRatingMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() < density {
				ratings.Set(i, j, float64(rng.IntN(5)+1))
			}
		}
	}
	return ratings
}

func TestSimilarityMethods(t *testing.T) {
	ratings := newUserRatings()
	testCases := []struct {
		method SimMethod
		alpha  float64
		s03    float64
		s23    float64
	}{
		{Cosine, 1, 0, 0.7071067811865475},
		{Cosine, 2, 0, 0.5},
		{AdjustedCosine, 1, 0.7071067811865475, 0.7071067811865475},
		{ZScore, 1, 0.6123724356957945, 0.6123724356957945},
		{ZScore, 2, 0.375, 0.375},
	}
	for _, tc := range testCases {
		scores := computeSimilarity(context.Background(), ratings, tc.method, tc.alpha, 1)
		s03, ok := scores.At(0, 3)
		assert.True(t, ok, tc.method)
		assert.InDelta(t, tc.s03, s03, delta, tc.method)
		s23, ok := scores.At(2, 3)
		assert.True(t, ok, tc.method)
		assert.InDelta(t, tc.s23, s23, delta, tc.method)
	}
}

func TestUndefinedSimilarity(t *testing.T) {
	for _, method := range simMethodList {
		sim := newSimilarity(method)
		// a single mutual entry
		_, ok := score(sim, &pair{a: []float64{1}, b: []float64{2}})
		assert.False(t, ok, method)
		// constant vector
		_, ok = score(sim, &pair{
			a:      []float64{3, 3, 3},
			b:      []float64{1, 2, 3},
			statsA: vectorStats{mean: 3},
			statsB: vectorStats{mean: 2, std: math.Sqrt(2.0 / 3)},
		})
		assert.False(t, ok, method)
	}
	// zero norm after centering by the whole-vector mean
	_, ok := score(adjustedCosineSimilarity{}, &pair{
		a:      []float64{1, 2},
		b:      []float64{1, 3},
		statsA: vectorStats{mean: 1.5, std: 0.5},
		statsB: vectorStats{mean: 2, std: 1},
	})
	assert.True(t, ok)
	_, ok = score(zScoreSimilarity{}, &pair{
		a:      []float64{1, 2},
		b:      []float64{1, 3},
		statsA: vectorStats{mean: 1.5, std: 0.5},
		statsB: vectorStats{mean: 2, std: 0},
	})
	assert.False(t, ok)
}

func TestSharpen(t *testing.T) {
	assert.Equal(t, 0.5, sharpen(0.5, 1))
	assert.Equal(t, -0.25, sharpen(-0.5, 2))
	assert.Equal(t, 0.0, sharpen(0, 3))
	assert.Equal(t, 1.0, sharpen(1, 4))
}

func TestSimilarityProperties(t *testing.T) {
	ratings := newRandomRatings(42, 30, 20, 0.4)
	for _, method := range simMethodList {
		scores := computeSimilarity(context.Background(), ratings, method, 1, 1)
		sharpened := computeSimilarity(context.Background(), ratings, method, 3, 1)
		parallel := computeSimilarity(context.Background(), ratings, method, 1, 4)
		assert.Equal(t, scores, parallel, method)
		for i := 0; i < scores.Size(); i++ {
			diagonal, ok := scores.At(i, i)
			assert.True(t, ok)
			assert.Equal(t, 1.0, diagonal)
			for j := 0; j < scores.Size(); j++ {
				s, ok := scores.At(i, j)
				mirror, mirrorOk := scores.At(j, i)
				assert.Equal(t, ok, mirrorOk)
				assert.Equal(t, s, mirror)
				if !ok {
					continue
				}
				assert.GreaterOrEqual(t, s, -1.0)
				assert.LessOrEqual(t, s, 1.0)
				// sharpening keeps the sign and shrinks the magnitude
				s3, ok3 := sharpened.At(i, j)
				require.True(t, ok3)
				assert.Equal(t, math.Signbit(s), math.Signbit(s3))
				assert.LessOrEqual(t, math.Abs(s3), math.Abs(s)+delta)
				if i != j {
					assert.InDelta(t, math.Pow(math.Abs(s), 3), math.Abs(s3), delta)
				}
			}
		}
	}
}

func TestSharpenWidensGap(t *testing.T) {
	high, low := 0.9, 0.3
	for _, alpha := range []float64{2, 3, 5} {
		assert.Greater(t, sharpen(high, alpha)/sharpen(low, alpha), high/low)
	}
}

func TestMinSimilarityShrinksNeighbors(t *testing.T) {
	ratings := newRandomRatings(7, 25, 15, 0.5)
	for _, orientation := range []Orientation{UserBased, ItemBased} {
		loose := fitModel(t, orientation, NewConfig(), ratings)
		strict := fitModel(t, orientation, NewConfig().SetMinSimilarity(0.3), ratings)
		for user := 0; user < 25; user++ {
			for item := 0; item < 15; item++ {
				looseSet, err := loose.Neighbors(user, item)
				require.NoError(t, err)
				strictSet, err := strict.Neighbors(user, item)
				require.NoError(t, err)
				assert.True(t, strictSet.IsSubset(looseSet))
			}
		}
	}
}

func TestCompletionIdempotent(t *testing.T) {
	ratings := newRandomRatings(3, 20, 12, 0.4)
	for _, orientation := range []Orientation{UserBased, ItemBased} {
		m := fitModel(t, orientation, NewConfig().SetSimMethod(AdjustedCosine), ratings)
		first, err := m.CompleteRatingMatrix()
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			for j := 0; j < 12; j++ {
				if value, ok := ratings.At(i, j); ok {
					completed, _ := first.At(i, j)
					assert.Equal(t, value, completed)
				}
			}
		}
		m = fitModel(t, orientation, NewConfig().SetSimMethod(AdjustedCosine), first)
		second, err := m.CompleteRatingMatrix()
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			for j := 0; j < 12; j++ {
				if value, ok := first.At(i, j); ok {
					completed, ok := second.At(i, j)
					assert.True(t, ok)
					assert.Equal(t, value, completed)
				}
			}
		}
	}
}
