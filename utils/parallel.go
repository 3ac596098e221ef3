package utils

import (
	"math"
	"runtime"
	"sync"

	goutils "go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization of the sweep
// helpers. This might be useful to set in tests where too much parallelism
// actually slows tests down in aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelOverRange splits [0, n) into contiguous spans, one per worker, and
// runs work on each span concurrently. Spans never overlap, so work may write
// to disjoint slices indexed by its span without synchronization. Blocks
// until all spans are done.
func ParallelOverRange(n int, work func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := ParallelFactor
	if workers > n {
		workers = n
	}
	spanSize := int(math.Ceil(float64(n) / float64(workers)))

	var wait sync.WaitGroup
	for start := 0; start < n; start += spanSize {
		end := MinInt(start+spanSize, n)
		startCopy, endCopy := start, end
		wait.Add(1)
		goutils.PanicCapturingGo(func() {
			defer wait.Done()
			work(startCopy, endCopy)
		})
	}
	wait.Wait()
}
