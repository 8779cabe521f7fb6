package enhancer

import (
	"runtime"
	"sync"
)

// parallelRows splits [0, h) into one contiguous strip per CPU and runs fn
// on each strip concurrently. It returns once every strip is done.
func parallelRows(h int, fn func(startY, endY int)) {
	workers := min(runtime.NumCPU(), h)
	if workers <= 1 {
		if h > 0 {
			fn(0, h)
		}
		return
	}

	per := (h + workers - 1) / workers
	var wg sync.WaitGroup
	for startY := 0; startY < h; startY += per {
		endY := min(startY+per, h)
		wg.Add(1)
		go func(a, b int) {
			defer wg.Done()
			fn(a, b)
		}(startY, endY)
	}
	wg.Wait()
}
