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
	"math/rand/v2"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/knn/common/parallel"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Score summarizes rating prediction accuracy on held-out ratings. RMSE and MAE are computed
// over resolved predictions only and are +Inf when nothing was resolved.
type Score struct {
	RMSE     float64
	MAE      float64
	Coverage float64
	Count    int
}

// Split holds out about testRatio of the observed ratings of every user. At least one rating
// of each user stays in the training matrix.
func Split(ratings *dataset.RatingMatrix, testRatio float64, seed uint64) (train, test *dataset.RatingMatrix, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	rows, cols := ratings.Shape()
	rng := rand.New(rand.NewPCG(seed, seed))
	train = dataset.NewEmptyRatingMatrix(rows, cols)
	test = dataset.NewEmptyRatingMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		columns, values := ratings.RowObserved(i)
		n := min(int(math.Round(testRatio*float64(len(columns)))), len(columns)-1)
		perm := rng.Perm(len(columns))
		held := mapset.NewThreadUnsafeSet[int]()
		for _, k := range perm[:max(n, 0)] {
			held.Add(k)
		}
		for k, column := range columns {
			if held.Contains(k) {
				test.Set(i, column, values[k])
			} else {
				train.Set(i, column, values[k])
			}
		}
	}
	return train, test, nil
}

type heldOut struct {
	user   int
	item   int
	rating float64
}

// Evaluate predicts every observed cell of test with a fitted model.
func Evaluate(model *Model, test *dataset.RatingMatrix) (Score, error) {
	if !model.IsFitted() {
		return Score{}, errors.WithType(errors.New("model must be fitted before evaluation"), ErrNotFitted)
	}
	var cells []heldOut
	rows, cols := test.Shape()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rating, ok := test.At(i, j); ok {
				cells = append(cells, heldOut{user: i, item: j, rating: rating})
			}
		}
	}
	errs := make([]float64, len(cells))
	resolved := make([]bool, len(cells))
	failures := make([]error, len(cells))
	parallel.ForEach(cells, model.Config().Jobs, func(k int, cell heldOut) {
		prediction, ok, err := model.Predict(cell.user, cell.item)
		if err != nil {
			failures[k] = err
			return
		}
		errs[k], resolved[k] = prediction-cell.rating, ok
	})
	if err, found := lo.Find(failures, func(err error) bool { return err != nil }); found {
		return Score{}, errors.Trace(err)
	}

	score := Score{Count: len(cells), RMSE: math.Inf(1), MAE: math.Inf(1)}
	n := lo.Count(resolved, true)
	if len(cells) > 0 {
		score.Coverage = float64(n) / float64(len(cells))
	}
	if n > 0 {
		var sumSquared, sumAbsolute float64
		for k, e := range errs {
			if resolved[k] {
				sumSquared += e * e
				sumAbsolute += math.Abs(e)
			}
		}
		score.RMSE = math.Sqrt(sumSquared / float64(n))
		score.MAE = sumAbsolute / float64(n)
	}
	return score, nil
}
