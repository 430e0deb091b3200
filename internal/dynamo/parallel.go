package dynamo

import "sync"

// ParallelForN executes fn over [0, n) split into contiguous chunks of at
// least minChunk elements, one goroutine per chunk and at most numWorkers
// chunks.
func ParallelForN(numWorkers, n, minChunk int, fn func(start, end int)) {
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
