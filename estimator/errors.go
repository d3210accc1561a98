package estimator

import "errors"

// ErrNoEstimate is returned by accessors that require HaveEstimate to be
// true (period and latency are meaningless before the window holds
// enough valid samples). Callers that ignore HaveEstimate are treating
// an estimator-internal contradiction as recoverable, which it isn't.
var ErrNoEstimate = errors.New("estimator: no estimate available yet")
