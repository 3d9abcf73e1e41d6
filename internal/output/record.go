package output

import (
	"math"

	"github.com/torosent/volley/internal/runner"
)

// Record is one line of the primary JSONL output.
type Record struct {
	RunID         string  `json:"runId"`
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	Outcome       string  `json:"outcome"`
	StatusCode    *int    `json:"statusCode"`
	Error         *string `json:"error"`
	ErrorKind     string  `json:"errorKind,omitempty"`
	ElapsedMs     float64 `json:"elapsedMs"`
	AttemptCount  int     `json:"attemptCount"`
	Interrupted   bool    `json:"interrupted"`
	ArtifactError string  `json:"artifactError,omitempty"`
}

// NewRecord flattens a result for serialization.
func NewRecord(runID string, res runner.Result) Record {
	rec := Record{
		RunID:        runID,
		Index:        res.Item.Index,
		Name:         res.Item.Name,
		Outcome:      string(res.Outcome),
		ErrorKind:    string(res.ErrorKind),
		ElapsedMs:    roundMs(res.Elapsed.Seconds() * 1000),
		AttemptCount: res.Attempts,
		Interrupted:  res.Interrupted,
	}
	if code := res.StatusCode(); code > 0 {
		rec.StatusCode = &code
	}
	if res.Err != nil {
		msg := res.Err.Error()
		rec.Error = &msg
	}
	return rec
}

func roundMs(ms float64) float64 {
	return math.Round(ms*100) / 100
}
