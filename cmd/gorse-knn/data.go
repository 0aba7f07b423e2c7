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

package main

import (
	"os"
	"strconv"

	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
)

// ratingData is a loaded rating matrix. Triplet files carry id dictionaries while dense files
// are addressed by row and column numbers.
type ratingData struct {
	ratings *dataset.RatingMatrix
	users   *dataset.FreqDict
	items   *dataset.FreqDict
}

func loadRatingData(cfg *config.Config) (*ratingData, error) {
	if cfg.Data.Path == "" {
		return nil, errors.NotValidf("empty data path")
	}
	file, err := os.Open(cfg.Data.Path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	switch cfg.Data.Format {
	case config.FormatDense:
		ratings, err := dataset.LoadDense(file, cfg.SeparatorRune())
		if err != nil {
			return nil, errors.Annotatef(err, "failed to load %s", cfg.Data.Path)
		}
		return &ratingData{ratings: ratings}, nil
	default:
		triplets, err := dataset.LoadTriplets(file, cfg.SeparatorRune(), cfg.Data.Header)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to load %s", cfg.Data.Path)
		}
		return &ratingData{ratings: triplets.Ratings, users: triplets.UserIndex, items: triplets.ItemIndex}, nil
	}
}

func lookup(dict *dataset.FreqDict, kind, name string) (int, error) {
	if dict == nil {
		index, err := strconv.Atoi(name)
		if err != nil {
			return 0, errors.NotValidf("%s %q", kind, name)
		}
		return index, nil
	}
	index, ok := dict.Id(name)
	if !ok {
		return 0, errors.NotFoundf("%s %q", kind, name)
	}
	return index, nil
}

func (d *ratingData) userIndex(name string) (int, error) {
	return lookup(d.users, "user", name)
}

func (d *ratingData) itemIndex(name string) (int, error) {
	return lookup(d.items, "item", name)
}

func name(dict *dataset.FreqDict, index int) string {
	if dict != nil {
		if s, ok := dict.String(index); ok {
			return s
		}
	}
	return strconv.Itoa(index)
}

func (d *ratingData) userName(index int) string {
	return name(d.users, index)
}

func (d *ratingData) itemName(index int) string {
	return name(d.items, index)
}
