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
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/knn/base/log"
	"github.com/gorse-io/knn/base/progress"
	"github.com/gorse-io/knn/common/heap"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/gorse-io/knn/model/knn")

// Model is a memory-based collaborative filtering model. A user-based model estimates a
// rating from users similar to the target user, an item-based model from items similar to the
// target item. Both accept and answer in the user × item frame.
//
// A model is fitted exactly once. After Fit returns, every query is read-only and safe for
// concurrent use.
type Model struct {
	orientation Orientation
	config      Config
	fitMu       sync.Mutex
	state       atomic.Pointer[fittedState]
}

// New creates an unfitted model. The config is validated and copied.
func New(orientation Orientation, config *Config) (*Model, error) {
	if orientation != UserBased && orientation != ItemBased {
		return nil, errors.WithType(errors.Errorf("unknown orientation %q", orientation), ErrConfiguration)
	}
	if config == nil {
		config = NewConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Model{orientation: orientation, config: *config}, nil
}

func NewUserBased(config *Config) (*Model, error) {
	return New(UserBased, config)
}

func NewItemBased(config *Config) (*Model, error) {
	return New(ItemBased, config)
}

func (m *Model) Orientation() Orientation {
	return m.orientation
}

// Config returns a copy of the config the model was built with.
func (m *Model) Config() Config {
	return m.config
}

// IsFitted returns true once Fit has succeeded.
func (m *Model) IsFitted() bool {
	return m.state.Load() != nil
}

// Fit computes the similarity matrix from ratings. The matrix is copied so later changes to
// it are not seen by the model. The context only carries tracing and progress spans.
func (m *Model) Fit(ctx context.Context, ratings *dataset.RatingMatrix) error {
	m.fitMu.Lock()
	defer m.fitMu.Unlock()
	if m.state.Load() != nil {
		return errors.WithType(errors.Errorf("%s-based model cannot be fitted twice", m.orientation), ErrAlreadyFitted)
	}
	if ratings == nil {
		return errors.WithType(errors.New("rating matrix is nil"), dataset.ErrShape)
	}

	rows, cols := ratings.Shape()
	ctx, span := tracer.Start(ctx, "Fit", trace.WithAttributes(
		attribute.String("orientation", string(m.orientation)),
		attribute.String("sim_method", string(m.config.SimMethod)),
		attribute.String("factorization", string(m.config.Factorization)),
		attribute.Int("users", rows),
		attribute.Int("items", cols),
	))
	defer span.End()
	state, err := m.fit(ctx, ratings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		progress.Fail(ctx, err)
		return errors.Trace(err)
	}
	m.state.Store(state)
	return nil
}

func (m *Model) fit(ctx context.Context, ratings *dataset.RatingMatrix) (*fittedState, error) {
	logger := log.ModelLogger(string(m.orientation))
	start := time.Now()
	var oriented *dataset.RatingMatrix
	if m.orientation == ItemBased {
		oriented = ratings.Transpose()
	} else {
		oriented = ratings.Clone()
	}
	logger.Debug("start fitting memory-based model",
		zap.Int("n_targets", oriented.Rows()),
		zap.Int("n_candidates", oriented.Cols()),
		zap.Int("n_ratings", oriented.Count()),
		zap.String("sim_method", string(m.config.SimMethod)),
		zap.Float64("alpha", m.config.Alpha),
		zap.Int("n_jobs", m.config.Jobs))

	// similarities are estimated on the compressed matrix while predictions use the original
	source, components := oriented, 0
	if m.config.Factorization != NoFactorization {
		factorizeStart := time.Now()
		factorizeCtx, span := tracer.Start(ctx, "Factorize")
		_, step := progress.Start(factorizeCtx, "factorize", 1)
		compressed, d, err := factorize(oriented, m.config.Factorization, m.config.CompressionRate, m.config.ApproximateFactorization)
		if err != nil {
			span.RecordError(err)
			span.End()
			step.Fail(err)
			return nil, errors.Trace(err)
		}
		span.SetAttributes(attribute.Int("components", d))
		span.End()
		step.End()
		source, components = compressed, d
		FitSecondsVec.WithLabelValues(string(m.orientation), "factorize").Set(time.Since(factorizeStart).Seconds())
		logger.Debug("factorize rating matrix",
			zap.String("method", string(m.config.Factorization)),
			zap.Float64("compression_rate", m.config.CompressionRate),
			zap.Bool("approximate", m.config.ApproximateFactorization),
			zap.Int("n_components", d),
			zap.Duration("elapsed", time.Since(factorizeStart)))
	}

	similarityStart := time.Now()
	similarityCtx, span := tracer.Start(ctx, "Similarity")
	similarity := computeSimilarity(similarityCtx, source, m.config.SimMethod, m.config.Alpha, m.config.Jobs)
	span.SetAttributes(attribute.Int("undefined", similarity.CountUndefined()))
	span.End()
	FitSecondsVec.WithLabelValues(string(m.orientation), "similarity").Set(time.Since(similarityStart).Seconds())

	state := newFittedState(oriented, similarity, m.config.MinSimilarity)
	state.components = components
	FitSecondsVec.WithLabelValues(string(m.orientation), "total").Set(time.Since(start).Seconds())
	logger.Info("fit memory-based model complete",
		zap.Int("n_targets", oriented.Rows()),
		zap.Int("n_undefined_similarities", similarity.CountUndefined()),
		zap.Duration("elapsed", time.Since(start)))
	return state, nil
}

func (m *Model) fitted() (*fittedState, error) {
	state := m.state.Load()
	if state == nil {
		return nil, errors.WithType(errors.Errorf("%s-based model must be fitted before queries", m.orientation), ErrNotFitted)
	}
	return state, nil
}

// orient maps a (user, item) pair onto (target, candidate) of the fitted matrix.
func (m *Model) orient(state *fittedState, user, item int) (int, int, error) {
	users, items := state.ratings.Shape()
	if m.orientation == ItemBased {
		users, items = items, users
	}
	if user < 0 || user >= users {
		return 0, 0, errors.WithType(errors.Errorf("user %d is out of range [0, %d)", user, users), ErrIndexOutOfRange)
	}
	if item < 0 || item >= items {
		return 0, 0, errors.WithType(errors.Errorf("item %d is out of range [0, %d)", item, items), ErrIndexOutOfRange)
	}
	if m.orientation == ItemBased {
		return item, user, nil
	}
	return user, item, nil
}

// Predict estimates the rating of user on item. The second return value is false when the
// cell is already observed or no neighbor qualifies.
func (m *Model) Predict(user, item int) (float64, bool, error) {
	state, err := m.fitted()
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	target, candidate, err := m.orient(state, user, item)
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	score, ok := state.predict(target, candidate)
	PredictionsTotal.WithLabelValues(string(m.orientation)).Inc()
	if !ok {
		UnresolvedPredictionsTotal.WithLabelValues(string(m.orientation)).Inc()
	}
	return score, ok, nil
}

// Neighbors returns the peers which take part in predicting (user, item): users for a
// user-based model, items for an item-based model.
func (m *Model) Neighbors(user, item int) (mapset.Set[int], error) {
	state, err := m.fitted()
	if err != nil {
		return nil, errors.Trace(err)
	}
	target, candidate, err := m.orient(state, user, item)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return state.neighbors(target, candidate), nil
}

// TopKItems ranks every item of a user by its completed rating: observed ratings as they are
// and predictions elsewhere. Items without a rating or a prediction are skipped. Items are
// ordered by descending rating and ascending index.
func (m *Model) TopKItems(user, k int) ([]int, error) {
	return m.rank(user, k, false)
}

// RecommendItems is TopKItems restricted to items the user has not rated.
func (m *Model) RecommendItems(user, k int) ([]int, error) {
	return m.rank(user, k, true)
}

func (m *Model) rank(user, k int, unobservedOnly bool) ([]int, error) {
	if k < 0 {
		return nil, errors.NotValidf("k = %d", k)
	}
	state, err := m.fitted()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if _, _, err = m.orient(state, user, 0); err != nil {
		return nil, errors.Trace(err)
	}
	items := state.ratings.Cols()
	if m.orientation == ItemBased {
		items = state.ratings.Rows()
	}
	filter := heap.NewTopKFilter[int, float64](k)
	for item := 0; item < items; item++ {
		target, candidate, _ := m.orient(state, user, item)
		if value, observed := state.ratings.At(target, candidate); observed {
			if !unobservedOnly {
				filter.Push(item, value)
			}
		} else if value, ok := state.predict(target, candidate); ok {
			filter.Push(item, value)
		}
	}
	return filter.PopAllValues(), nil
}

// CompleteRatingMatrix returns the user × item matrix with every predictable absent cell
// filled in. Observed cells are unchanged and unpredictable cells stay absent.
func (m *Model) CompleteRatingMatrix() (*dataset.RatingMatrix, error) {
	state, err := m.fitted()
	if err != nil {
		return nil, errors.Trace(err)
	}
	completed := state.complete(m.config.Jobs)
	if m.orientation == ItemBased {
		return completed.Transpose(), nil
	}
	return completed, nil
}

// SimScores returns the similarity matrix between users (user-based) or items (item-based).
func (m *Model) SimScores() (*SimilarityMatrix, error) {
	state, err := m.fitted()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return state.similarity, nil
}

// Components returns the number of retained components, 0 without factorization.
func (m *Model) Components() (int, error) {
	state, err := m.fitted()
	if err != nil {
		return 0, errors.Trace(err)
	}
	return state.components, nil
}
