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
	"testing"

	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	ratings := newRandomRatings(11, 40, 30, 0.3)
	train, test, err := Split(ratings, 0.2, 0)
	require.NoError(t, err)
	assert.Equal(t, ratings.Count(), train.Count()+test.Count())
	assert.InDelta(t, 0.2, float64(test.Count())/float64(ratings.Count()), 0.08)
	for i := 0; i < 40; i++ {
		columns, _ := ratings.RowObserved(i)
		trainColumns, _ := train.RowObserved(i)
		if len(columns) > 0 {
			assert.NotEmpty(t, trainColumns)
		}
		for _, j := range columns {
			value, _ := ratings.At(i, j)
			trainValue, inTrain := train.At(i, j)
			testValue, inTest := test.At(i, j)
			assert.NotEqual(t, inTrain, inTest)
			if inTrain {
				assert.Equal(t, value, trainValue)
			} else {
				assert.Equal(t, value, testValue)
			}
		}
	}

	// same seed, same split
	train2, test2, err := Split(ratings, 0.2, 0)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		for j := 0; j < 30; j++ {
			assert.Equal(t, train.IsObserved(i, j), train2.IsObserved(i, j))
			assert.Equal(t, test.IsObserved(i, j), test2.IsObserved(i, j))
		}
	}

	_, _, err = Split(ratings, 0, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, _, err = Split(ratings, 1, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestEvaluate(t *testing.T) {
	m := fitModel(t, UserBased, NewConfig().SetMinSimilarity(0.1), newUserRatings())
	test := dataset.NewEmptyRatingMatrix(4, 4)
	test.Set(0, 0, 2)
	test.Set(2, 2, 0)
	test.Set(0, 3, 1)
	score, err := Evaluate(m, test)
	require.NoError(t, err)
	// (0, 0) predicts 2 and (2, 2) predicts -1 while (0, 3) is unresolved
	assert.Equal(t, 3, score.Count)
	assert.InDelta(t, 2.0/3, score.Coverage, delta)
	assert.InDelta(t, math.Sqrt(0.5), score.RMSE, delta)
	assert.InDelta(t, 0.5, score.MAE, delta)

	test = dataset.NewEmptyRatingMatrix(4, 4)
	test.Set(0, 3, 1)
	score, err = Evaluate(m, test)
	require.NoError(t, err)
	assert.Zero(t, score.Coverage)
	assert.True(t, math.IsInf(score.RMSE, 1))

	test = dataset.NewEmptyRatingMatrix(5, 4)
	test.Set(4, 0, 1)
	_, err = Evaluate(m, test)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestEvaluateParallel(t *testing.T) {
	ratings := newRandomRatings(5, 30, 20, 0.4)
	train, test, err := Split(ratings, 0.2, 1)
	require.NoError(t, err)
	sequential := fitModel(t, ItemBased, NewConfig(), train)
	parallel := fitModel(t, ItemBased, NewConfig().SetJobs(4), train)
	expected, err := Evaluate(sequential, test)
	require.NoError(t, err)
	actual, err := Evaluate(parallel, test)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
	assert.Equal(t, test.Count(), actual.Count)
}
