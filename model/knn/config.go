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
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

// SimMethod selects the pairwise similarity measure.
type SimMethod string

const (
	Pearson        SimMethod = "pearson"
	Cosine         SimMethod = "cosine"
	AdjustedCosine SimMethod = "adjusted_cosine"
	ZScore         SimMethod = "zscore"
)

// FactorizationMethod selects the preprocessing applied before similarity estimation.
type FactorizationMethod string

const (
	NoFactorization FactorizationMethod = "none"
	SVD             FactorizationMethod = "svd"
	PCA             FactorizationMethod = "pca"
)

// Orientation decides whether similarities are computed between users or between items.
type Orientation string

const (
	UserBased Orientation = "user"
	ItemBased Orientation = "item"
)

// Config is the parameter set of a memory-based model. A model copies its config at
// construction, so later changes to the struct never reach a model.
type Config struct {
	SimMethod                SimMethod           `mapstructure:"sim_method" validate:"oneof=pearson cosine adjusted_cosine zscore"`
	Alpha                    float64             `mapstructure:"alpha" validate:"gte=1"`
	MinSimilarity            float64             `mapstructure:"min_similarity" validate:"gte=0,lt=1"`
	Factorization            FactorizationMethod `mapstructure:"factorization" validate:"oneof=none svd pca"`
	CompressionRate          float64             `mapstructure:"compression_rate" validate:"gt=0,lte=1"`
	ApproximateFactorization bool                `mapstructure:"approximate_factorization"`
	Jobs                     int                 `mapstructure:"jobs" validate:"gte=1"`
}

func NewConfig() *Config {
	return &Config{
		SimMethod:       Pearson,
		Alpha:           1,
		MinSimilarity:   0,
		Factorization:   NoFactorization,
		CompressionRate: 1,
		Jobs:            runtime.NumCPU(),
	}
}

func (config *Config) SetSimMethod(method SimMethod) *Config {
	config.SimMethod = method
	return config
}

func (config *Config) SetAlpha(alpha float64) *Config {
	config.Alpha = alpha
	return config
}

func (config *Config) SetMinSimilarity(minSimilarity float64) *Config {
	config.MinSimilarity = minSimilarity
	return config
}

func (config *Config) SetFactorization(method FactorizationMethod, compressionRate float64, approximate bool) *Config {
	config.Factorization = method
	config.CompressionRate = compressionRate
	config.ApproximateFactorization = approximate
	return config
}

func (config *Config) SetJobs(jobs int) *Config {
	config.Jobs = jobs
	return config
}

var validate = validator.New()

// Validate checks every option against its domain. Violations are reported as
// ErrConfiguration.
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return errors.Trace(err)
		}
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s must satisfy %s %s but got %v",
				fieldError.Field(), fieldError.Tag(), fieldError.Param(), fieldError.Value()))
		}
		return errors.WithType(errors.New(strings.Join(messages, "; ")), ErrConfiguration)
	}
	return nil
}
