package cost

import "sync"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	MistralOCR OCRRate              `yaml:"mistral_ocr" mapstructure:"mistral_ocr"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// OCRRate holds Mistral OCR per-page pricing.
type OCRRate struct {
	PerPage float64 `yaml:"per_page" mapstructure:"per_page"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, isBatch bool, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch {
		batchMul = rate.BatchDiscount
	}

	inCost := (float64(input) / 1e6) * rate.Input * batchMul
	outCost := (float64(output) / 1e6) * rate.Output * batchMul
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul * batchMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul * batchMul

	return inCost + outCost + cwCost + crCost
}

// OCRPages computes the cost of running Mistral OCR over n pages.
func (c *Calculator) OCRPages(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.MistralOCR.PerPage
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		// Mistral bills OCR at $1 per 1000 pages.
		MistralOCR: OCRRate{PerPage: 0.001},
	}
}

// Tracker accumulates run-level spend across providers. Safe for
// concurrent use by extraction workers.
type Tracker struct {
	mu          sync.Mutex
	ocrPages    int
	ocrCost     float64
	assistCalls int
	assistCost  float64
}

// Summary is a point-in-time snapshot of tracked spend.
type Summary struct {
	OCRPages    int     `json:"ocr_pages"`
	OCRCost     float64 `json:"ocr_cost"`
	AssistCalls int     `json:"assist_calls"`
	AssistCost  float64 `json:"assist_cost"`
	Total       float64 `json:"total"`
}

// AddOCR records one OCR invocation of n pages.
func (t *Tracker) AddOCR(pages int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ocrPages += pages
	t.ocrCost += cost
}

// AddAssist records one model-assist call.
func (t *Tracker) AddAssist(cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assistCalls++
	t.assistCost += cost
}

// Snapshot returns the current totals.
func (t *Tracker) Snapshot() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		OCRPages:    t.ocrPages,
		OCRCost:     t.ocrCost,
		AssistCalls: t.assistCalls,
		AssistCost:  t.assistCost,
		Total:       t.ocrCost + t.assistCost,
	}
}
