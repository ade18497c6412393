package batch

import (
	"math"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// CostEstimator estimates the prompt-size cost of a piece of text in
// abstract token units.
type CostEstimator interface {
	Estimate(text string) int
}

const (
	cjkCharWeight   = 1.5
	otherCharWeight = 0.25
)

// HeuristicEstimator approximates token cost from character counts.
// CJK characters weigh heavier than latin characters because they map to
// more tokens per character in common encodings.
type HeuristicEstimator struct{}

// Estimate returns round(cjk*1.5 + other*0.25), with a minimum of 1.
func (HeuristicEstimator) Estimate(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			cjk++
		} else {
			other++
		}
	}

	cost := int(math.Round(float64(cjk)*cjkCharWeight + float64(other)*otherCharWeight))
	if cost < 1 {
		return 1
	}
	return cost
}

// EncodingEstimator counts tokens exactly using a tiktoken encoding.
type EncodingEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewEncodingEstimator creates an estimator backed by the named tiktoken
// encoding, e.g. "o200k_base".
func NewEncodingEstimator(encoding string) (*EncodingEstimator, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &EncodingEstimator{enc: enc}, nil
}

// Estimate returns the exact token count of text, with a minimum of 1.
func (e *EncodingEstimator) Estimate(text string) int {
	tokens := e.enc.Encode(text, nil, nil)
	if len(tokens) < 1 {
		return 1
	}
	return len(tokens)
}
