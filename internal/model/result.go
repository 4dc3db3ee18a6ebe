package model

import "time"

// Status is the outcome class of a single engine run.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the outcome of one engine run. On error Score and Multiplier are
// both zero and Message explains the failure.
type Result struct {
	Score       float64 `json:"svr"`
	Multiplier  float64 `json:"multiplier"`
	Status      Status  `json:"status"`
	Message     string  `json:"message,omitempty"`
	PassThrough bool    `json:"pass_through,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
}

// OK reports whether the run succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// ScoredRequest pairs a request with its result for persistence and reporting.
type ScoredRequest struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id,omitempty"`
	Request   Request   `json:"request"`
	Result    Result    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
