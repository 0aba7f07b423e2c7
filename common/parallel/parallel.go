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

	"github.com/samber/lo"
)

const chanSize = 1024

/* Parallel Schedulers */

// For runs worker(jobId) for every jobId in [0, nJobs) on nWorkers goroutines. Jobs are fed
// through a channel so that uneven jobs balance across workers. For returns after every job
// has finished.
func For(nJobs, nWorkers int, worker func(int)) {
	if nWorkers <= 1 || nJobs <= 1 {
		for i := 0; i < nJobs; i++ {
			worker(i)
		}
	} else {
		c := make(chan int, chanSize)
		// producer
		go func() {
			for i := 0; i < nJobs; i++ {
				c <- i
			}
			close(c)
		}()
		// consumer
		var wg sync.WaitGroup
		for j := 0; j < nWorkers; j++ {
			// start workers
			wg.Go(func() {
				for jobId := range c {
					worker(jobId)
				}
			})
		}
		wg.Wait()
	}
}

// ForEach runs worker(i, a[i]) for every element of a on nWorkers goroutines.
func ForEach[T any](a []T, nWorkers int, worker func(int, T)) {
	if nWorkers <= 1 {
		for i, v := range a {
			worker(i, v)
		}
	} else {
		c := make(chan lo.Tuple2[int, T], chanSize)
		// producer
		go func() {
			for i, v := range a {
				c <- lo.Tuple2[int, T]{A: i, B: v}
			}
			close(c)
		}()
		// consumer
		var wg sync.WaitGroup
		for j := 0; j < nWorkers; j++ {
			// start workers
			wg.Go(func() {
				for job := range c {
					worker(job.A, job.B)
				}
			})
		}
		wg.Wait()
	}
}
