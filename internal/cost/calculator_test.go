package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		MistralOCR: OCRRate{PerPage: 0.001},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		model      string
		isBatch    bool
		input      int
		output     int
		cacheWrite int
		cacheRead  int
		want       float64
	}{
		{
			name:   "haiku non-batch simple",
			model:  "haiku",
			input:  1000000,
			output: 100000,
			want:   0.80 + 0.40, // 0.80 input + 0.40 output
		},
		{
			name:    "haiku batch 50% discount",
			model:   "haiku",
			isBatch: true,
			input:   1000000,
			output:  100000,
			want:    (0.80 * 0.5) + (0.40 * 0.5), // 0.40 + 0.20
		},
		{
			// in 0.5M*0.80, out 0.05M*4.00, write 0.2M*0.80*1.25,
			// read 0.3M*0.80*0.1.
			name:       "haiku with cache",
			model:      "haiku",
			input:      500000,
			output:     50000,
			cacheWrite: 200000,
			cacheRead:  300000,
			want:       0.40 + 0.20 + 0.20 + 0.024,
		},
		{
			name:   "sonnet non-batch",
			model:  "sonnet",
			input:  1000000,
			output: 100000,
			want:   3.00 + 1.50, // 3.00 input + 1.50 output
		},
		{
			name:   "unknown model returns 0",
			model:  "unknown",
			input:  1000000,
			output: 1000000,
			want:   0,
		},
		{
			name:  "zero tokens returns 0",
			model: "haiku",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Claude(tt.model, tt.isBatch, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestOCRPages(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name  string
		pages int
		want  float64
	}{
		{"single page", 1, 0.001},
		{"thousand pages", 1000, 1.0},
		{"zero pages", 0, 0},
		{"negative pages", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.OCRPages(tt.pages), 0.0001)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
	assert.Contains(t, rates.Anthropic, "claude-opus-4-6")
	assert.InDelta(t, 0.001, rates.MistralOCR.PerPage, 0.0001)
}

func TestTracker_Accumulates(t *testing.T) {
	t.Parallel()
	var tr Tracker

	tr.AddOCR(3, 0.003)
	tr.AddOCR(2, 0.002)
	tr.AddAssist(0.01)
	tr.AddAssist(0.02)

	s := tr.Snapshot()
	assert.Equal(t, 5, s.OCRPages)
	assert.InDelta(t, 0.005, s.OCRCost, 1e-9)
	assert.Equal(t, 2, s.AssistCalls)
	assert.InDelta(t, 0.03, s.AssistCost, 1e-9)
	assert.InDelta(t, 0.035, s.Total, 1e-9)
}

func TestTracker_ConcurrentAdds(t *testing.T) {
	t.Parallel()
	var tr Tracker

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AddOCR(1, 0.001)
			tr.AddAssist(0.002)
		}()
	}
	wg.Wait()

	s := tr.Snapshot()
	assert.Equal(t, 50, s.OCRPages)
	assert.Equal(t, 50, s.AssistCalls)
	assert.InDelta(t, 0.05+0.10, s.Total, 1e-6)
}
