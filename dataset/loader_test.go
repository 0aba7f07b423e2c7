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
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTriplets(t *testing.T) {
	text := "user,item,rating\n" +
		"alice,matrix,5\n" +
		"alice,alien,3\n" +
		"bob,matrix,4\n" +
		"carol,heat,1.5\n" +
		"bob,matrix,2\n"
	triplets, err := LoadTriplets(strings.NewReader(text), ',', true)
	require.NoError(t, err)
	rows, cols := triplets.Ratings.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 4, triplets.Ratings.Count())

	bob, ok := triplets.UserIndex.Id("bob")
	require.True(t, ok)
	matrix, ok := triplets.ItemIndex.Id("matrix")
	require.True(t, ok)
	value, ok := triplets.Ratings.At(bob, matrix)
	assert.True(t, ok)
	assert.Equal(t, 2.0, value)
	assert.Equal(t, 2, triplets.UserIndex.Freq(bob))

	carol, _ := triplets.UserIndex.Id("carol")
	alien, _ := triplets.ItemIndex.Id("alien")
	assert.False(t, triplets.Ratings.IsObserved(carol, alien))
}

func TestLoadTripletsError(t *testing.T) {
	_, err := LoadTriplets(strings.NewReader("a\tb\tx\n"), '\t', false)
	assert.Error(t, err)
	_, err = LoadTriplets(strings.NewReader("a,b\n"), ',', false)
	assert.Error(t, err)
	_, err = LoadTriplets(strings.NewReader("user,item,rating\n"), ',', true)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = LoadTriplets(strings.NewReader("a,b,inf\n"), ',', false)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestLoadDense(t *testing.T) {
	text := "nan, 2, 0,\n" +
		"-2, , NaN, 0\n"
	ratings, err := LoadDense(strings.NewReader(text), ',')
	require.NoError(t, err)
	rows, cols := ratings.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 4, ratings.Count())
	value, ok := ratings.At(1, 0)
	assert.True(t, ok)
	assert.Equal(t, -2.0, value)
	assert.False(t, ratings.IsObserved(0, 3))

	_, err = LoadDense(strings.NewReader("1,2\n3\n"), ',')
	assert.True(t, errors.Is(err, ErrShape))
	_, err = LoadDense(strings.NewReader("1,x\n"), ',')
	assert.True(t, errors.Is(err, ErrShape))
}
