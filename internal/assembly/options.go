package assembly

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultQualityThreshold      = 0.65
	DefaultSimilarityThreshold   = 0.75
	DefaultMaxAttempts           = 3
	DefaultGenerationTimeout     = 45 * time.Second
	DefaultGeneratedConfidence   = 0.75
	DefaultClassifierConcurrency = 4
)

// Options tunes one pipeline.
type Options struct {
	// QualityThreshold is the minimum classifier quality a sourced question needs.
	QualityThreshold float64
	// SimilarityThreshold is τ: anything strictly more similar is a duplicate.
	SimilarityThreshold float64
	// MaxAttempts bounds the completion gate's repair rounds.
	MaxAttempts int
	// GenerationTimeout bounds every single generator call.
	GenerationTimeout time.Duration
	// GeneratedConfidence is applied to generated questions that carry no confidence.
	GeneratedConfidence   float64
	ClassifierConcurrency int
	Split                 DifficultySplit
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		QualityThreshold:      DefaultQualityThreshold,
		SimilarityThreshold:   DefaultSimilarityThreshold,
		MaxAttempts:           DefaultMaxAttempts,
		GenerationTimeout:     DefaultGenerationTimeout,
		GeneratedConfidence:   DefaultGeneratedConfidence,
		ClassifierConcurrency: DefaultClassifierConcurrency,
		Split:                 DefaultSplit,
	}
}

// withDefaults fills zero fields so a partially populated Options is usable.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = d.QualityThreshold
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = d.GenerationTimeout
	}
	if o.GeneratedConfidence <= 0 {
		o.GeneratedConfidence = d.GeneratedConfidence
	}
	if o.ClassifierConcurrency <= 0 {
		o.ClassifierConcurrency = d.ClassifierConcurrency
	}
	if o.Split.total() <= 0 {
		o.Split = d.Split
	}
	return o
}

// DifficultySplit is the easy/average/difficult ratio used to break a
// (topic, level) count into difficulty buckets.
type DifficultySplit struct {
	Easy      float64 `json:"easy"`
	Average   float64 `json:"average"`
	Difficult float64 `json:"difficult"`
}

// DefaultSplit is the 30/50/20 ratio.
var DefaultSplit = DifficultySplit{Easy: 0.30, Average: 0.50, Difficult: 0.20}

func (s DifficultySplit) total() float64 {
	return s.Easy + s.Average + s.Difficult
}

// ParseDifficultySplit reads "30,50,20" (percent or fractions) into a split.
func ParseDifficultySplit(raw string) (DifficultySplit, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return DifficultySplit{}, fmt.Errorf("difficulty split %q: want 3 comma-separated values", raw)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return DifficultySplit{}, fmt.Errorf("difficulty split %q: %w", raw, err)
		}
		if v < 0 {
			return DifficultySplit{}, fmt.Errorf("difficulty split %q: negative share", raw)
		}
		vals[i] = v
	}
	sum := vals[0] + vals[1] + vals[2]
	if sum <= 0 {
		return DifficultySplit{}, fmt.Errorf("difficulty split %q: shares sum to zero", raw)
	}
	return DifficultySplit{Easy: vals[0] / sum, Average: vals[1] / sum, Difficult: vals[2] / sum}, nil
}
