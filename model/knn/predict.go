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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/knn/common/parallel"
	"github.com/gorse-io/knn/dataset"
)

// fittedState is everything a fitted model reads. It is immutable once built so queries
// never lock.
type fittedState struct {
	// ratings in model orientation: rows are targets, columns are candidates.
	ratings       *dataset.RatingMatrix
	means         []float64
	hasMean       []bool
	similarity    *SimilarityMatrix
	minSimilarity float64
	components    int
}

func newFittedState(ratings *dataset.RatingMatrix, similarity *SimilarityMatrix, minSimilarity float64) *fittedState {
	state := &fittedState{
		ratings:       ratings,
		means:         make([]float64, ratings.Rows()),
		hasMean:       make([]bool, ratings.Rows()),
		similarity:    similarity,
		minSimilarity: minSimilarity,
	}
	for i := range state.means {
		state.means[i], state.hasMean[i] = ratings.RowMean(i)
	}
	return state
}

// eachNeighbor calls fn, in ascending order, for every peer of target which rated candidate
// and whose similarity to target exceeds the minimum in magnitude.
func (state *fittedState) eachNeighbor(target, candidate int, fn func(peer int, similarity, rating float64)) {
	peers, ratings := state.ratings.ColObserved(candidate)
	for k, peer := range peers {
		if peer == target {
			continue
		}
		if s, ok := state.similarity.At(target, peer); ok && math.Abs(s) > state.minSimilarity {
			fn(peer, s, ratings[k])
		}
	}
}

func (state *fittedState) neighbors(target, candidate int) mapset.Set[int] {
	peers := mapset.NewSet[int]()
	state.eachNeighbor(target, candidate, func(peer int, _, _ float64) {
		peers.Add(peer)
	})
	return peers
}

// predict estimates the rating of target at candidate by the mean-centered weighted average
// over neighbors. It returns false for observed cells and when no neighbor contributes.
func (state *fittedState) predict(target, candidate int) (float64, bool) {
	if state.ratings.IsObserved(target, candidate) || !state.hasMean[target] {
		return 0, false
	}
	var numerator, denominator float64
	state.eachNeighbor(target, candidate, func(peer int, similarity, rating float64) {
		numerator += similarity * (rating - state.means[peer])
		denominator += math.Abs(similarity)
	})
	if denominator == 0 {
		return 0, false
	}
	return state.means[target] + numerator/denominator, true
}

// complete returns a copy of ratings with every predictable absent cell filled in. Cells
// which cannot be predicted stay absent.
func (state *fittedState) complete(jobs int) *dataset.RatingMatrix {
	rows, cols := state.ratings.Shape()
	completed := dataset.NewEmptyRatingMatrix(rows, cols)
	predictions := make([][]float64, rows)
	resolved := make([][]bool, rows)
	parallel.For(rows, jobs, func(i int) {
		predictions[i] = make([]float64, cols)
		resolved[i] = make([]bool, cols)
		for j := 0; j < cols; j++ {
			if value, observed := state.ratings.At(i, j); observed {
				predictions[i][j], resolved[i][j] = value, true
			} else {
				predictions[i][j], resolved[i][j] = state.predict(i, j)
			}
		}
	})
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if resolved[i][j] {
				completed.Set(i, j, predictions[i][j])
			}
		}
	}
	return completed
}
