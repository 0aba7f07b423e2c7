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

	"github.com/gorse-io/knn/base/progress"
	"github.com/gorse-io/knn/common/parallel"
	"github.com/gorse-io/knn/dataset"
	"github.com/samber/lo"
)

// SimilarityMatrix is a square symmetric matrix of pairwise similarities. The diagonal is 1
// and an entry may be undefined when the pair shares too few ratings.
type SimilarityMatrix struct {
	n       int
	scores  []float64
	defined []bool
}

func newSimilarityMatrix(n int) *SimilarityMatrix {
	return &SimilarityMatrix{
		n:       n,
		scores:  make([]float64, n*n),
		defined: make([]bool, n*n),
	}
}

// Size returns the number of rows (and columns).
func (s *SimilarityMatrix) Size() int {
	return s.n
}

// At returns the similarity between i and j and whether it is defined.
func (s *SimilarityMatrix) At(i, j int) (float64, bool) {
	if !s.defined[i*s.n+j] {
		return 0, false
	}
	return s.scores[i*s.n+j], true
}

// CountUndefined returns the number of undefined entries.
func (s *SimilarityMatrix) CountUndefined() int {
	return lo.Count(s.defined, false)
}

// ToDense converts the matrix to rows of scores with NaN at undefined entries.
func (s *SimilarityMatrix) ToDense() [][]float64 {
	data := make([][]float64, s.n)
	for i := range data {
		data[i] = make([]float64, s.n)
		for j := range data[i] {
			if score, ok := s.At(i, j); ok {
				data[i][j] = score
			} else {
				data[i][j] = math.NaN()
			}
		}
	}
	return data
}

// set stores a score at (i, j) and (j, i).
func (s *SimilarityMatrix) set(i, j int, score float64) {
	s.scores[i*s.n+j] = score
	s.defined[i*s.n+j] = true
	s.scores[j*s.n+i] = score
	s.defined[j*s.n+i] = true
}

// computeSimilarity computes similarities between rows of ratings. Row i is one job which
// fills the upper triangle cells (i, j > i) and their mirrors, so jobs never share a cell.
func computeSimilarity(ctx context.Context, ratings *dataset.RatingMatrix, method SimMethod, alpha float64, jobs int) *SimilarityMatrix {
	rows, cols := ratings.Shape()
	_, span := progress.Start(ctx, "similarity", rows)
	defer span.End()
	dense := ratings.IsDense()
	sim := newSimilarity(method)
	stats := make([]vectorStats, rows)
	for i := range stats {
		stats[i].mean, _ = ratings.RowMean(i)
		stats[i].std, _ = ratings.RowStd(i)
	}
	allColumns := lo.Range(cols)

	matrix := newSimilarityMatrix(rows)
	parallel.For(rows, jobs, func(i int) {
		matrix.set(i, i, 1)
		for j := i + 1; j < rows; j++ {
			columns := allColumns
			if !dense {
				columns = ratings.MutualColumns(i, j)
			}
			p := &pair{
				a:      make([]float64, len(columns)),
				b:      make([]float64, len(columns)),
				statsA: stats[i],
				statsB: stats[j],
			}
			for k, column := range columns {
				p.a[k], _ = ratings.At(i, column)
				p.b[k], _ = ratings.At(j, column)
			}
			if s, ok := score(sim, p); ok {
				matrix.set(i, j, sharpen(s, alpha))
			}
		}
		span.Add(1)
	})
	return matrix
}
