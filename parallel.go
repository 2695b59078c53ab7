package bgone

import (
	"runtime"
	"sync"
	"sync/atomic"
)

func workerCount(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// parallelFor calls fn(i) for every i in [0,n) using up to workers
// goroutines. Indices are handed out in order; fn must only write state
// owned by index i. done, when non-nil, is called after each index with the
// number finished so far.
func parallelFor(n, workers int, fn func(i int), done func(finished int)) {
	workers = min(workerCount(workers), n)
	if workers <= 1 {
		for i := range n {
			fn(i)
			if done != nil {
				done(i + 1)
			}
		}
		return
	}

	var next, finished atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				fn(i)
				if done != nil {
					done(int(finished.Add(1)))
				}
			}
		}()
	}
	wg.Wait()
}
