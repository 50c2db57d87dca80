package vision

import (
	"math"
	"sync/atomic"
)

// CostTracker accumulates token usage and estimated spend across API
// calls. One tracker is injected per processing session; trackers are
// safe for concurrent use.
type CostTracker struct {
	inputCost  float64 // per input token
	outputCost float64 // per output token

	inputTokens  atomic.Int64
	outputTokens atomic.Int64
	calls        atomic.Int64
	microCost    atomic.Int64 // cost in millionths of a dollar
}

// NewCostTracker creates a tracker with per-token prices.
func NewCostTracker(inputCost, outputCost float64) *CostTracker {
	return &CostTracker{inputCost: inputCost, outputCost: outputCost}
}

// Add records one API call's token usage.
func (t *CostTracker) Add(inputTokens, outputTokens int) {
	t.inputTokens.Add(int64(inputTokens))
	t.outputTokens.Add(int64(outputTokens))
	t.calls.Add(1)
	cost := float64(inputTokens)*t.inputCost + float64(outputTokens)*t.outputCost
	t.microCost.Add(int64(math.Round(cost * 1e6)))
}

// Total returns the accumulated estimated cost in dollars.
func (t *CostTracker) Total() float64 {
	return float64(t.microCost.Load()) / 1e6
}

// Calls returns the number of API calls recorded.
func (t *CostTracker) Calls() int {
	return int(t.calls.Load())
}

// Tokens returns accumulated input and output token counts.
func (t *CostTracker) Tokens() (input, output int64) {
	return t.inputTokens.Load(), t.outputTokens.Load()
}

// Reset zeroes all counters.
func (t *CostTracker) Reset() {
	t.inputTokens.Store(0)
	t.outputTokens.Store(0)
	t.calls.Store(0)
	t.microCost.Store(0)
}
