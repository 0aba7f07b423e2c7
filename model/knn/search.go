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
	"sync"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/knn/base/log"
	"github.com/gorse-io/knn/base/progress"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// unresolvedPenalty is the objective value of a trial which resolves no held-out rating. A
// partly resolved trial pays the share of the penalty matching its unresolved ratings.
const unresolvedPenalty = 1e6

var simMethods = []string{string(Pearson), string(Cosine), string(AdjustedCosine), string(ZScore)}

// SearchResult is the best trial found so far.
type SearchResult struct {
	Config Config
	Score  Score
}

// ModelSearch searches the similarity options of a memory-based model. Factorization options
// and the number of jobs are taken from the base config.
type ModelSearch struct {
	ctx         context.Context
	orientation Orientation
	base        Config
	trainSet    *dataset.RatingMatrix
	testSet     *dataset.RatingMatrix
	onTrial     func(Config, Score)

	mu     sync.Mutex
	trials int
	found  bool
	value  float64
	result SearchResult
}

func NewModelSearch(ctx context.Context, orientation Orientation, trainSet, testSet *dataset.RatingMatrix, base *Config) *ModelSearch {
	if base == nil {
		base = NewConfig()
	}
	return &ModelSearch{
		ctx:         ctx,
		orientation: orientation,
		base:        *base,
		trainSet:    trainSet,
		testSet:     testSet,
	}
}

// OnTrial registers a callback invoked after every finished trial.
func (ms *ModelSearch) OnTrial(callback func(Config, Score)) {
	ms.onTrial = callback
}

// Objective fits a model with suggested options and returns its RMSE on the test set, raised
// by the penalty of unresolved test ratings.
func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	method, err := trial.SuggestCategorical("sim_method", simMethods)
	if err != nil {
		return 0, errors.Trace(err)
	}
	alpha, err := trial.SuggestDiscreteFloat("alpha", 1, 4, 0.5)
	if err != nil {
		return 0, errors.Trace(err)
	}
	minSimilarity, err := trial.SuggestDiscreteFloat("min_similarity", 0, 0.5, 0.1)
	if err != nil {
		return 0, errors.Trace(err)
	}
	config := ms.base
	config.SetSimMethod(SimMethod(method)).SetAlpha(alpha).SetMinSimilarity(minSimilarity)

	m, err := New(ms.orientation, &config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if err = m.Fit(ms.ctx, ms.trainSet); err != nil {
		return 0, errors.Trace(err)
	}
	score, err := Evaluate(m, ms.testSet)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return ms.record(config, score), nil
}

// record keeps the trial if it beats the best one so far and returns its objective value.
func (ms *ModelSearch) record(config Config, score Score) float64 {
	value := objectiveValue(score)
	ms.mu.Lock()
	ms.trials++
	if !ms.found || value < ms.value {
		ms.found = true
		ms.value = value
		ms.result = SearchResult{Config: config, Score: score}
	}
	ms.mu.Unlock()
	if ms.onTrial != nil {
		ms.onTrial(config, score)
	}
	return value
}

func objectiveValue(score Score) float64 {
	if score.Coverage == 0 {
		return unresolvedPenalty
	}
	return score.RMSE + (1-score.Coverage)*unresolvedPenalty
}

// Result returns the best trial and whether any trial has finished.
func (ms *ModelSearch) Result() (SearchResult, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.result, ms.found
}

// Tune runs nTrials of TPE search minimizing RMSE.
func Tune(ctx context.Context, orientation Orientation, trainSet, testSet *dataset.RatingMatrix, base *Config, nTrials int, onTrial func(Config, Score)) (SearchResult, error) {
	if nTrials <= 0 {
		return SearchResult{}, errors.NotValidf("number of trials %d", nTrials)
	}
	ctx, span := progress.Start(ctx, "tune", nTrials)
	search := NewModelSearch(ctx, orientation, trainSet, testSet, base)
	search.OnTrial(func(config Config, score Score) {
		span.Add(1)
		log.ModelLogger(string(orientation)).Debug("finish trial",
			zap.String("sim_method", string(config.SimMethod)),
			zap.Float64("alpha", config.Alpha),
			zap.Float64("min_similarity", config.MinSimilarity),
			zap.Float64("rmse", score.RMSE),
			zap.Float64("coverage", score.Coverage))
		if onTrial != nil {
			onTrial(config, score)
		}
	})
	study, err := goptuna.CreateStudy("knn",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		span.Fail(err)
		return SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(search.Objective, nTrials); err != nil {
		span.Fail(err)
		return SearchResult{}, errors.Trace(err)
	}
	span.End()
	result, _ := search.Result()
	log.ModelLogger(string(orientation)).Info("complete similarity search",
		zap.String("sim_method", string(result.Config.SimMethod)),
		zap.Float64("alpha", result.Config.Alpha),
		zap.Float64("min_similarity", result.Config.MinSimilarity),
		zap.Float64("rmse", result.Score.RMSE),
		zap.Float64("mae", result.Score.MAE),
		zap.Float64("coverage", result.Score.Coverage))
	return result, nil
}
