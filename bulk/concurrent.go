package bulk

import "sync"

// progressMutex serializes Result updates and the Progress callback across
// the goroutines runConcurrent fans out, so two rows finishing at the same
// instant never race on Result.Succeeded/Failed or report out-of-order
// cumulative counts.
type progressMutex struct {
	mu sync.Mutex
}

func (p *progressMutex) record(res *Result, index int, err error, progress func(succeeded, failed int)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, RowError{Index: index, Err: err})
	} else {
		res.Succeeded++
	}
	if progress != nil {
		progress(res.Succeeded, res.Failed)
	}
}
