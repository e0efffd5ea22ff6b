package v1

import "time"

// Topic represents a fitted cluster and its label.
type Topic struct {
	Label   int    `json:"label"`
	Size    int    `json:"size"`
	Summary string `json:"summary,omitempty"`
}

// Inference represents the topic assigned to a new document.
type Inference struct {
	Text  string  `json:"text"`
	Label int     `json:"label"`
	Topic string  `json:"topic,omitempty"`
	Score float32 `json:"score"`
}

// Run represents a recorded fit of the pipeline.
type Run struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
