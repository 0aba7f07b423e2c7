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

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/stat"
)

// ErrShape is returned when ratings are not a rectangular two-dimensional numeric table.
const ErrShape = errors.ConstError("shape error")

// RatingMatrix is a dense m × n table of ratings where every cell is either observed or
// absent. Absent cells carry no value and never take part in arithmetic.
type RatingMatrix struct {
	rows     int
	cols     int
	values   []float64
	observed *bitset.BitSet
}

// NewRatingMatrix creates a rating matrix from rows of ratings. NaN marks a missing rating.
// It fails with ErrShape if the table is empty, ragged or contains an infinite value.
func NewRatingMatrix(data [][]float64) (*RatingMatrix, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, errors.WithType(errors.New("rating matrix must have at least one row and one column"), ErrShape)
	}
	m := NewEmptyRatingMatrix(len(data), len(data[0]))
	for i, row := range data {
		if len(row) != m.cols {
			return nil, errors.WithType(errors.Errorf(
				"row %d has %d columns, expected %d", i, len(row), m.cols), ErrShape)
		}
		for j, value := range row {
			if math.IsNaN(value) {
				continue
			}
			if math.IsInf(value, 0) {
				return nil, errors.WithType(errors.Errorf("rating at (%d, %d) is not a finite number", i, j), ErrShape)
			}
			m.Set(i, j, value)
		}
	}
	return m, nil
}

// NewEmptyRatingMatrix creates a rows × cols matrix without any observation.
func NewEmptyRatingMatrix(rows, cols int) *RatingMatrix {
	return &RatingMatrix{
		rows:     rows,
		cols:     cols,
		values:   make([]float64, rows*cols),
		observed: bitset.New(uint(rows * cols)),
	}
}

// Set marks cell (i, j) as observed with the given rating.
func (m *RatingMatrix) Set(i, j int, value float64) {
	m.values[i*m.cols+j] = value
	m.observed.Set(uint(i*m.cols + j))
}

// Shape returns the number of rows and columns.
func (m *RatingMatrix) Shape() (int, int) {
	return m.rows, m.cols
}

func (m *RatingMatrix) Rows() int {
	return m.rows
}

func (m *RatingMatrix) Cols() int {
	return m.cols
}

// Count returns the number of observed cells.
func (m *RatingMatrix) Count() int {
	return int(m.observed.Count())
}

// IsObserved returns true if cell (i, j) holds a rating.
func (m *RatingMatrix) IsObserved(i, j int) bool {
	return m.observed.Test(uint(i*m.cols + j))
}

// At returns the rating of cell (i, j) and whether it is observed.
func (m *RatingMatrix) At(i, j int) (float64, bool) {
	if !m.IsObserved(i, j) {
		return 0, false
	}
	return m.values[i*m.cols+j], true
}

// IsDense returns true if every cell is observed.
func (m *RatingMatrix) IsDense() bool {
	return m.observed.All()
}

// RowObserved returns observed column indices and ratings of row i.
func (m *RatingMatrix) RowObserved(i int) ([]int, []float64) {
	var (
		indices []int
		values  []float64
	)
	for j := 0; j < m.cols; j++ {
		if value, ok := m.At(i, j); ok {
			indices = append(indices, j)
			values = append(values, value)
		}
	}
	return indices, values
}

// ColObserved returns observed row indices and ratings of column j.
func (m *RatingMatrix) ColObserved(j int) ([]int, []float64) {
	var (
		indices []int
		values  []float64
	)
	for i := 0; i < m.rows; i++ {
		if value, ok := m.At(i, j); ok {
			indices = append(indices, i)
			values = append(values, value)
		}
	}
	return indices, values
}

// RowMean returns the mean of observed ratings in row i. It returns false if the row has no
// observation.
func (m *RatingMatrix) RowMean(i int) (float64, bool) {
	_, values := m.RowObserved(i)
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// ColMean returns the mean of observed ratings in column j.
func (m *RatingMatrix) ColMean(j int) (float64, bool) {
	_, values := m.ColObserved(j)
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// RowStd returns the population standard deviation of observed ratings in row i.
func (m *RatingMatrix) RowStd(i int) (float64, bool) {
	_, values := m.RowObserved(i)
	if len(values) == 0 {
		return 0, false
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std, true
}

// Mean returns the mean of all observed ratings.
func (m *RatingMatrix) Mean() (float64, bool) {
	sum, count := 0.0, 0
	for i, e := m.observed.NextSet(0); e; i, e = m.observed.NextSet(i + 1) {
		sum += m.values[i]
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// MutualColumns returns the columns observed in both row a and row b.
func (m *RatingMatrix) MutualColumns(a, b int) []int {
	var mutual []int
	for j := 0; j < m.cols; j++ {
		if m.IsObserved(a, j) && m.IsObserved(b, j) {
			mutual = append(mutual, j)
		}
	}
	return mutual
}

// MutualRows returns the rows observed in both column a and column b.
func (m *RatingMatrix) MutualRows(a, b int) []int {
	var mutual []int
	for i := 0; i < m.rows; i++ {
		if m.IsObserved(i, a) && m.IsObserved(i, b) {
			mutual = append(mutual, i)
		}
	}
	return mutual
}

// Transpose returns a new n × m matrix with rows and columns swapped.
func (m *RatingMatrix) Transpose() *RatingMatrix {
	t := NewEmptyRatingMatrix(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			if value, ok := m.At(i, j); ok {
				t.Set(j, i, value)
			}
		}
	}
	return t
}

// Clone returns a deep copy.
func (m *RatingMatrix) Clone() *RatingMatrix {
	values := make([]float64, len(m.values))
	copy(values, m.values)
	return &RatingMatrix{
		rows:     m.rows,
		cols:     m.cols,
		values:   values,
		observed: m.observed.Clone(),
	}
}

// ToDense converts the matrix to rows of ratings with NaN at absent cells.
func (m *RatingMatrix) ToDense() [][]float64 {
	data := make([][]float64, m.rows)
	for i := range data {
		data[i] = make([]float64, m.cols)
		for j := range data[i] {
			if value, ok := m.At(i, j); ok {
				data[i][j] = value
			} else {
				data[i][j] = math.NaN()
			}
		}
	}
	return data
}
