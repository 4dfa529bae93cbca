// Package async provides a small worker pool for fan-out/join queries.
package async

import (
	"context"
	"sync"
)

// Task is a named unit of work.
type Task[T any] struct {
	Name    string
	Execute func() (T, error)
}

// Result carries a task's outcome, keyed by its name.
type Result[T any] struct {
	Name string
	Data T
	Err  error
}

// Pool runs tasks across a fixed number of workers.
type Pool[T any] struct {
	workerCount int
	tasks       chan Task[T]
	results     chan Result[T]
}

// NewPool creates a pool with the given worker count.
func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{
		workerCount: workerCount,
		tasks:       make(chan Task[T]),
		results:     make(chan Result[T]),
	}
}

func (p *Pool[T]) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			data, err := task.Execute()
			select {
			case p.results <- Result[T]{Name: task.Name, Data: data, Err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Execute runs all tasks and returns their results keyed by task name. When
// the context is cancelled, the partial result map collected so far is
// returned.
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) map[string]Result[T] {
	var wg sync.WaitGroup
	results := make(map[string]Result[T], len(tasks))

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg)
	}

	go func() {
		defer close(p.tasks)
		for _, task := range tasks {
			select {
			case p.tasks <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-p.results:
			results[result.Name] = result
		case <-ctx.Done():
			return results
		}
	}

	wg.Wait()
	close(p.results)

	return results
}
