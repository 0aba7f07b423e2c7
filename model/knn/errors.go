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

import "github.com/juju/errors"

const (
	// ErrConfiguration is returned when an option is outside its domain or the factorization
	// cannot be computed.
	ErrConfiguration = errors.ConstError("configuration error")
	// ErrNotFitted is returned when a model is queried before Fit.
	ErrNotFitted = errors.ConstError("model not fitted")
	// ErrAlreadyFitted is returned when Fit is called twice on the same model.
	ErrAlreadyFitted = errors.ConstError("model already fitted")
	// ErrIndexOutOfRange is returned when a user or item index is outside the rating matrix.
	ErrIndexOutOfRange = errors.ConstError("index out of range")
)
