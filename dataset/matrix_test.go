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

package dataset

import (
	"math"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestNewRatingMatrix(t *testing.T) {
	m, err := NewRatingMatrix([][]float64{
		{nan, 2, 0, nan},
		{-2, nan, nan, 0},
		{1, -1, nan, nan},
	})
	require.NoError(t, err)
	rows, cols := m.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 6, m.Count())
	assert.False(t, m.IsDense())

	// zero is a rating, NaN is not
	value, ok := m.At(0, 2)
	assert.True(t, ok)
	assert.Zero(t, value)
	_, ok = m.At(0, 0)
	assert.False(t, ok)
	assert.False(t, m.IsObserved(1, 1))
	assert.True(t, m.IsObserved(1, 3))
}

func TestNewRatingMatrixShapeError(t *testing.T) {
	_, err := NewRatingMatrix(nil)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = NewRatingMatrix([][]float64{{}})
	assert.True(t, errors.Is(err, ErrShape))
	_, err = NewRatingMatrix([][]float64{{1, 2}, {3}})
	assert.True(t, errors.Is(err, ErrShape))
	_, err = NewRatingMatrix([][]float64{{1, math.Inf(1)}})
	assert.True(t, errors.Is(err, ErrShape))
}

func TestRatingMatrixStatistics(t *testing.T) {
	m, err := NewRatingMatrix([][]float64{
		{1, 2, nan},
		{3, nan, nan},
		{5, 4, nan},
	})
	require.NoError(t, err)

	mean, ok := m.RowMean(0)
	assert.True(t, ok)
	assert.InDelta(t, 1.5, mean, 1e-12)
	std, ok := m.RowStd(0)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, std, 1e-12)
	std, ok = m.RowStd(1)
	assert.True(t, ok)
	assert.Zero(t, std)

	mean, ok = m.ColMean(0)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, mean, 1e-12)
	_, ok = m.ColMean(2)
	assert.False(t, ok)

	mean, ok = m.Mean()
	assert.True(t, ok)
	assert.InDelta(t, 3.0, mean, 1e-12)

	assert.Equal(t, []int{0, 1}, m.MutualColumns(0, 2))
	assert.Equal(t, []int{0}, m.MutualColumns(0, 1))
	assert.Equal(t, []int{0, 2}, m.MutualRows(0, 1))
	assert.Empty(t, m.MutualRows(0, 2))

	indices, values := m.RowObserved(2)
	assert.Equal(t, []int{0, 1}, indices)
	assert.Equal(t, []float64{5, 4}, values)
	indices, values = m.ColObserved(1)
	assert.Equal(t, []int{0, 2}, indices)
	assert.Equal(t, []float64{2, 4}, values)
}

func TestRatingMatrixTranspose(t *testing.T) {
	m, err := NewRatingMatrix([][]float64{
		{1, nan, 3},
		{nan, 5, 6},
	})
	require.NoError(t, err)
	tm := m.Transpose()
	rows, cols := tm.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			a, okA := m.At(i, j)
			b, okB := tm.At(j, i)
			assert.Equal(t, okA, okB)
			assert.Equal(t, a, b)
		}
	}
	assert.Equal(t, m.ToDense()[1][2], tm.Transpose().ToDense()[1][2])
}

func TestRatingMatrixClone(t *testing.T) {
	m, err := NewRatingMatrix([][]float64{{1, nan}, {nan, 4}})
	require.NoError(t, err)
	c := m.Clone()
	c.Set(0, 1, 2)
	assert.False(t, m.IsObserved(0, 1))
	assert.True(t, c.IsObserved(0, 1))

	dense := m.ToDense()
	assert.Equal(t, 1.0, dense[0][0])
	assert.True(t, math.IsNaN(dense[0][1]))
}
