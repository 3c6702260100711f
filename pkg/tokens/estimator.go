// Package tokens counts tokens and converts them to cost.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Direction selects which side of a call a text was on.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Default rates in USD per token.
const (
	DefaultInputRate  = 5.0 / 1_000_000
	DefaultOutputRate = 20.0 / 1_000_000
)

// InvalidDirectionError is returned when a direction is neither input nor output.
type InvalidDirectionError struct {
	Direction Direction
}

func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("invalid token direction %q (want %q or %q)", string(e.Direction), Input, Output)
}

// Rates holds the per-token price for each direction.
type Rates struct {
	Input  float64
	Output float64
}

// DefaultRates returns the gpt-4o list prices.
func DefaultRates() Rates {
	return Rates{Input: DefaultInputRate, Output: DefaultOutputRate}
}

func (r Rates) validate() error {
	if r.Input < 0 || r.Output < 0 {
		return fmt.Errorf("token rates must be non-negative (input=%g, output=%g)", r.Input, r.Output)
	}
	if r.Input == r.Output {
		return fmt.Errorf("input and output token rates must differ (both %g)", r.Input)
	}
	return nil
}

// Counter counts tokens in a text.
type Counter interface {
	Count(text string) int
	Name() string
}

// Estimator converts text into a token count and a cost.
type Estimator struct {
	counter Counter
	rates   Rates
}

// NewEstimator creates an estimator. Input and output rates must differ.
func NewEstimator(counter Counter, rates Rates) (*Estimator, error) {
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	if err := rates.validate(); err != nil {
		return nil, err
	}
	return &Estimator{counter: counter, rates: rates}, nil
}

// Rates returns the configured rates.
func (e *Estimator) Rates() Rates {
	return e.rates
}

// Counter returns the underlying token counter.
func (e *Estimator) Counter() Counter {
	return e.counter
}

// Rate returns the per-token price for a direction.
func (e *Estimator) Rate(direction Direction) (float64, error) {
	switch direction {
	case Input:
		return e.rates.Input, nil
	case Output:
		return e.rates.Output, nil
	default:
		return 0, &InvalidDirectionError{Direction: direction}
	}
}

// Estimate returns the token count of text and its cost in the given direction.
func (e *Estimator) Estimate(text string, direction Direction) (int, float64, error) {
	rate, err := e.Rate(direction)
	if err != nil {
		return 0, 0, err
	}
	count := e.counter.Count(text)
	return count, float64(count) * rate, nil
}

// BPECounter counts tokens with the byte-pair encoding a model uses.
type BPECounter struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

var (
	encodingCacheMu sync.Mutex
	encodingCache   = map[string]*tiktoken.Tiktoken{}
)

// NewBPECounter loads the encoding for model, falling back to cl100k_base
// for models tiktoken does not know.
func NewBPECounter(model string) (*BPECounter, error) {
	encoding := tiktoken.MODEL_CL100K_BASE
	if name, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		encoding = name
	} else {
		best := ""
		for prefix, name := range tiktoken.MODEL_PREFIX_TO_ENCODING {
			if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
				best, encoding = prefix, name
			}
		}
	}

	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()
	if tke, ok := encodingCache[encoding]; ok {
		return &BPECounter{encoding: encoding, tke: tke}, nil
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encoding, err)
	}
	encodingCache[encoding] = tke
	return &BPECounter{encoding: encoding, tke: tke}, nil
}

// Count returns the number of BPE tokens in text.
func (c *BPECounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.tke.Encode(text, nil, nil))
}

// Name returns the encoding name.
func (c *BPECounter) Name() string {
	return c.encoding
}

// HeuristicCounter estimates four characters per token. Estimate-grade only.
type HeuristicCounter struct{}

// Count returns ceil(runes/4).
func (HeuristicCounter) Count(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}

// Name returns "heuristic".
func (HeuristicCounter) Name() string {
	return "heuristic"
}

// NewCounter returns the counter named by kind: "bpe" (default) or "heuristic".
func NewCounter(kind, model string) (Counter, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "bpe", "tiktoken":
		return NewBPECounter(model)
	case "heuristic":
		return HeuristicCounter{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}
