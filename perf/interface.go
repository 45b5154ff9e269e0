package perf

import "context"

// ChangeDetector types locate the indexes at which a series shifts.
type ChangeDetector interface {
	DetectChanges(context.Context, []float64) ([]ChangePoint, error)
}

// ChangePoint marks the first index of a new segment of a series.
type ChangePoint struct {
	Index       int           `json:"index"`
	Probability float64       `json:"probability"`
	Info        AlgorithmInfo `json:"algorithm"`
}

type AlgorithmInfo struct {
	Name    string            `json:"name"`
	Version int               `json:"version"`
	Options []AlgorithmOption `json:"options"`
}

type AlgorithmOption struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}
