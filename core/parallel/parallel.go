// Package parallel splits an index range into contiguous chunks and runs them
// on separate goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Workers returns the number of goroutines Parallelize uses for items.
func Workers(items int) int {
	if items <= 0 {
		return 0
	}
	n := runtime.NumCPU()
	if n > items {
		n = items
	}
	return n
}

// Parallelize CPUコア数に応じて [0, items) を分割し、各範囲 (start, end) で fn を並列実行する
func Parallelize(items int, fn func(start, end int)) {
	_ = ParallelizeErr(items, 0, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeWithThreshold items が threshold 以下なら逐次実行、超える場合のみ並列化する
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	_ = ParallelizeErr(items, threshold, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeErr is ParallelizeWithThreshold for chunk functions that can fail.
// When several chunks fail, the error of the lowest chunk is returned, so the
// result does not depend on goroutine scheduling.
func ParallelizeErr(items, threshold int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}
	if items <= threshold {
		return fn(0, items)
	}

	workers := Workers(items)
	chunk := (items + workers - 1) / workers
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			errs[w] = fn(s, e)
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
