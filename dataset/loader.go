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
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Triplets is a rating matrix loaded from (user, item, rating) records together with the
// dictionaries that map external ids to row and column indices.
type Triplets struct {
	Ratings   *RatingMatrix
	UserIndex *FreqDict
	ItemIndex *FreqDict
}

// LoadTriplets reads "user<sep>item<sep>rating" records. If a pair appears more than once, the
// last rating wins.
func LoadTriplets(r io.Reader, sep rune, header bool) (*Triplets, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = 3
	type record struct {
		user, item int
		rating     float64
	}
	var (
		records   []record
		userIndex = NewFreqDict()
		itemIndex = NewFreqDict()
	)
	for lineNumber := 1; ; lineNumber++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if header && lineNumber == 1 {
			continue
		}
		rating, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		if math.IsNaN(rating) || math.IsInf(rating, 0) {
			return nil, errors.WithType(errors.Errorf("line %d: rating is not a finite number", lineNumber), ErrShape)
		}
		records = append(records, record{
			user:   userIndex.Add(strings.TrimSpace(fields[0])),
			item:   itemIndex.Add(strings.TrimSpace(fields[1])),
			rating: rating,
		})
	}
	if len(records) == 0 {
		return nil, errors.WithType(errors.New("no rating found"), ErrShape)
	}
	ratings := NewEmptyRatingMatrix(userIndex.Count(), itemIndex.Count())
	for _, rec := range records {
		ratings.Set(rec.user, rec.item, rec.rating)
	}
	return &Triplets{Ratings: ratings, UserIndex: userIndex, ItemIndex: itemIndex}, nil
}

// LoadDense reads a grid of ratings, one row per line. Empty cells and "nan" (any case) are
// missing ratings.
func LoadDense(r io.Reader, sep rune) (*RatingMatrix, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	lines, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Trace(err)
	}
	data := make([][]float64, len(lines))
	for i, fields := range lines {
		data[i] = make([]float64, len(fields))
		for j, field := range fields {
			field = strings.TrimSpace(field)
			if field == "" || strings.EqualFold(field, "nan") {
				data[i][j] = math.NaN()
				continue
			}
			data[i][j], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.WithType(errors.Annotatef(err, "cell (%d, %d)", i, j), ErrShape)
			}
		}
	}
	ratings, err := NewRatingMatrix(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}
