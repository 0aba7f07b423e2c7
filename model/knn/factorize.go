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

	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// factorize compresses ratings into a dense matrix of the same shape. Ratings are centered by
// the baseline r_i + c_j - μ, the residuals are decomposed, and the retained components plus
// the baseline are multiplied back. Absent residuals are zero, so absent cells take the
// baseline plus whatever the low-rank structure carries into them.
func factorize(ratings *dataset.RatingMatrix, method FactorizationMethod, compressionRate float64, approximate bool) (*dataset.RatingMatrix, int, error) {
	if compressionRate <= 0 || compressionRate > 1 {
		return nil, 0, errors.WithType(errors.Errorf("compression rate must be in (0, 1] but got %v", compressionRate), ErrConfiguration)
	}
	rows, cols := ratings.Shape()
	globalMean, ok := ratings.Mean()
	if !ok {
		return nil, 0, errors.WithType(errors.New("cannot factorize a matrix without observed ratings"), ErrConfiguration)
	}
	rowMeans := make([]float64, rows)
	for i := range rowMeans {
		if rowMeans[i], ok = ratings.RowMean(i); !ok {
			rowMeans[i] = globalMean
		}
	}
	colMeans := make([]float64, cols)
	for j := range colMeans {
		if colMeans[j], ok = ratings.ColMean(j); !ok {
			colMeans[j] = globalMean
		}
	}
	baseline := mat.NewDense(rows, cols, nil)
	residual := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			b := rowMeans[i] + colMeans[j] - globalMean
			baseline.Set(i, j, b)
			if value, observed := ratings.At(i, j); observed {
				residual.Set(i, j, value-b)
			}
		}
	}

	var (
		reconstructed mat.Dense
		components    int
	)
	switch method {
	case SVD:
		var svd mat.SVD
		if !svd.Factorize(residual, mat.SVDThin) {
			return nil, 0, errors.WithType(errors.New("singular value decomposition failed"), ErrConfiguration)
		}
		values := svd.Values(nil)
		components = retainedComponents(values, compressionRate, approximate, min(rows, cols))
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		var us mat.Dense
		us.Mul(u.Slice(0, rows, 0, components), mat.NewDiagDense(components, values[:components]))
		reconstructed.Mul(&us, v.Slice(0, cols, 0, components).T())
	case PCA:
		var pc stat.PC
		if !pc.PrincipalComponents(residual, nil) {
			return nil, 0, errors.WithType(errors.New("principal components analysis failed"), ErrConfiguration)
		}
		components = retainedComponents(pc.VarsTo(nil), compressionRate, approximate, min(rows, cols))
		var vectors mat.Dense
		pc.VectorsTo(&vectors)
		basis := vectors.Slice(0, cols, 0, components)
		// project centered residuals onto the retained directions and back
		centers := make([]float64, cols)
		centered := mat.DenseCopyOf(residual)
		for j := range centers {
			centers[j] = stat.Mean(mat.Col(nil, j, residual), nil)
			for i := 0; i < rows; i++ {
				centered.Set(i, j, centered.At(i, j)-centers[j])
			}
		}
		var scores mat.Dense
		scores.Mul(centered, basis)
		reconstructed.Mul(&scores, basis.T())
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				reconstructed.Set(i, j, reconstructed.At(i, j)+centers[j])
			}
		}
	default:
		return nil, 0, errors.WithType(errors.Errorf("unknown factorization method %q", method), ErrConfiguration)
	}
	reconstructed.Add(&reconstructed, baseline)

	compressed := dataset.NewEmptyRatingMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			compressed.Set(i, j, reconstructed.At(i, j))
		}
	}
	return compressed, components, nil
}

// retainedComponents returns how many leading components to keep given their masses
// (singular values or explained variances, in descending order). By default enough components
// are kept to reach compressionRate of the total mass. With approximate set, compressionRate is
// ignored and every component up to maxRank is kept.
func retainedComponents(mass []float64, compressionRate float64, approximate bool, maxRank int) int {
	rank := min(len(mass), maxRank)
	if rank <= 0 {
		return 0
	}
	if approximate {
		return rank
	}
	mass = mass[:rank]
	total := floats.Sum(mass)
	threshold := compressionRate*total - epsilon*math.Max(1, total)
	acc := 0.0
	for k, m := range mass {
		acc += m
		if acc >= threshold {
			return k + 1
		}
	}
	return rank
}
