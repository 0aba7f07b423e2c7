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

package parallel

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// multiple threads
		a := lo.Range(10000)
		b := make([]int, len(a))
		For(len(a), 4, func(jobId int) {
			b[jobId] = a[jobId]
			time.Sleep(time.Microsecond)
		})
		assert.Equal(t, a, b)
		// single thread
		b = make([]int, len(a))
		For(len(a), 1, func(jobId int) {
			b[jobId] = a[jobId]
		})
		assert.Equal(t, a, b)
	})
}

func TestForWorkers(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		seen := mapset.NewSet[int]()
		For(100, 4, func(jobId int) {
			mu.Lock()
			seen.Add(jobId)
			mu.Unlock()
			time.Sleep(time.Millisecond)
		})
		assert.Equal(t, 100, seen.Cardinality())
	})
	// no jobs
	called := false
	For(0, 4, func(int) { called = true })
	assert.False(t, called)
}

func TestForEach(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := lo.Range(10000)
		b := make([]int, len(a))
		// multiple threads
		ForEach(a, 4, func(i, v int) {
			b[i] = v
			time.Sleep(time.Microsecond)
		})
		assert.Equal(t, a, b)
		// single thread
		b = make([]int, len(a))
		ForEach(a, 1, func(i, v int) {
			b[i] = v
		})
		assert.Equal(t, a, b)
	})
}
