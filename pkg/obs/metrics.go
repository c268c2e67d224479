package obs

import "time"

// Metrics defines the interface for tracking usage, workflows and storage.
type Metrics interface {
	// RecordUsage records units charged against a resource kind.
	RecordUsage(kind string, amount int)

	// RecordGate records the outcome of an availability check.
	RecordGate(kind string, allowed bool)

	// RecordStorageOperation records the duration and status of a storage operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)

	// RecordLibraryChange records a mutation of a content collection ("add", "remove").
	RecordLibraryChange(collection, operation string)

	// RecordWorkflow records a finished workflow run and its outcome.
	RecordWorkflow(workflow, outcome string, duration time.Duration)

	// RecordProviderCall records a call to the generative provider.
	RecordProviderCall(operation string, duration time.Duration, err error)

	// RecordCircuitBreakerStateChange records a circuit breaker state change.
	RecordCircuitBreakerStateChange(state string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordUsage(kind string, amount int)                                        {}
func (n *NoopMetrics) RecordGate(kind string, allowed bool)                                       {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
func (n *NoopMetrics) RecordLibraryChange(collection, operation string)                           {}
func (n *NoopMetrics) RecordWorkflow(workflow, outcome string, duration time.Duration)            {}
func (n *NoopMetrics) RecordProviderCall(operation string, duration time.Duration, err error)     {}
func (n *NoopMetrics) RecordCircuitBreakerStateChange(state string)                               {}
