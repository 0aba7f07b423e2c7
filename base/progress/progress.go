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

package progress

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer records the progress of long-running jobs such as model fitting. Spans are attached
// to a context so library code can report progress without knowing who listens.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(name, total)
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns root spans followed by their children, depth first, ordered by start time.
func (t *Tracer) List() []Progress {
	var roots []*Span
	t.spans.Range(func(_, value any) bool {
		roots = append(roots, value.(*Span))
		return true
	})
	var progress []Progress
	for _, span := range sortSpans(roots) {
		progress = span.appendTo(progress, t.name, 0)
	}
	return progress
}

type Span struct {
	name     string
	total    int
	count    atomic.Int64
	start    time.Time
	children sync.Map

	mu     sync.Mutex
	status Status
	err    error
	finish time.Time
}

func newSpan(name string, total int) *Span {
	return &Span{
		name:   name,
		total:  total,
		start:  time.Now(),
		status: StatusRunning,
	}
}

// Add advances the span by n. It is safe to call from multiple goroutines.
func (s *Span) Add(n int) {
	s.count.Add(int64(n))
}

func (s *Span) Count() int {
	return int(s.count.Load())
}

// End marks the span complete unless it has failed.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count.Store(int64(s.total))
	}
	s.finish = time.Now()
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err
	s.finish = time.Now()
}

func (s *Span) appendTo(progress []Progress, tracer string, depth int) []Progress {
	s.mu.Lock()
	p := Progress{
		Tracer:     tracer,
		Name:       s.name,
		Depth:      depth,
		Status:     s.status,
		Count:      s.Count(),
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if s.err != nil {
		p.Error = s.err.Error()
	}
	s.mu.Unlock()
	progress = append(progress, p)
	var children []*Span
	s.children.Range(func(_, value any) bool {
		children = append(children, value.(*Span))
		return true
	})
	for _, child := range sortSpans(children) {
		progress = child.appendTo(progress, tracer, depth+1)
	}
	return progress
}

func sortSpans(spans []*Span) []*Span {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start.Equal(spans[j].start) {
			return spans[i].name < spans[j].name
		}
		return spans[i].start.Before(spans[j].start)
	})
	return spans
}

// Start creates a child of the span carried by ctx. Without a parent the span is detached:
// it still counts but nobody lists it.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	childSpan := newSpan(name, total)
	if ctx == nil {
		return nil, childSpan
	}
	span, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, childSpan
	}
	span.children.Store(name, childSpan)
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

// Fail marks the span carried by ctx as failed.
func Fail(ctx context.Context, err error) {
	if span, ok := ctx.Value(spanKeyName).(*Span); ok {
		span.Fail(err)
	}
}

type Progress struct {
	Tracer     string
	Name       string
	Depth      int
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
