package report

import (
	"context"
	"fmt"
	"sync"

	"perpscan/pkg/market"
)

// defaultWorkers bounds batch concurrency when the caller does not.
const defaultWorkers = 4

// Task is one (symbol, interval) unit of batch work.
type Task struct {
	Symbol   string
	Interval market.Interval
}

// TaskFunc runs one task. The runner records the returned error and keeps
// going.
type TaskFunc func(ctx context.Context, task Task) error

// BatchResult sums up a batch run. Failures are ordered like the task list
// regardless of which worker hit them.
type BatchResult struct {
	Succeeded int
	Failures  []string
}

// Err reports total failure: a batch where every task failed.
func (r *BatchResult) Err() error {
	if r.Succeeded == 0 && len(r.Failures) > 0 {
		return fmt.Errorf("report: all %d tasks failed", len(r.Failures))
	}
	return nil
}

// Tasks builds the symbols-by-intervals task grid, symbols outermost.
func Tasks(symbols []string, intervals []market.Interval) []Task {
	tasks := make([]Task, 0, len(symbols)*len(intervals))
	for _, symbol := range symbols {
		for _, interval := range intervals {
			tasks = append(tasks, Task{Symbol: symbol, Interval: interval})
		}
	}
	return tasks
}

// RunBatch executes the tasks with at most workers goroutines. One task's
// failure never stops the others; each failure is recorded as
// "SYMBOL (interval): error".
func RunBatch(ctx context.Context, tasks []Task, workers int, fn TaskFunc) *BatchResult {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	errs := make([]error, len(tasks))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(ctx, tasks[i])
			}
		}()
	}
	for i := range tasks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := &BatchResult{}
	for i, err := range errs {
		if err == nil {
			result.Succeeded++
			continue
		}
		result.Failures = append(result.Failures,
			fmt.Sprintf("%s (%s): %v", tasks[i].Symbol, tasks[i].Interval, err))
	}
	return result
}
