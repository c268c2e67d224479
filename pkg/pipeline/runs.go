package pipeline

import "sync"

// Run identifies one invocation of a workflow. A later Begin for the same
// workflow makes earlier runs stale; callers drop results of stale runs.
type Run struct {
	Workflow string `json:"workflow"`
	Seq      uint64 `json:"seq"`
}

// Runs issues run tokens.
type Runs struct {
	mu     sync.Mutex
	latest map[string]uint64
}

// NewRuns creates an empty token issuer.
func NewRuns() *Runs {
	return &Runs{latest: make(map[string]uint64)}
}

// Begin issues the next token for workflow.
func (r *Runs) Begin(workflow string) Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[workflow]++
	return Run{Workflow: workflow, Seq: r.latest[workflow]}
}

// Fresh reports whether run is still the latest run of its workflow.
func (r *Runs) Fresh(run Run) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[run.Workflow] == run.Seq
}
