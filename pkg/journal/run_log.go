package journal

import "time"

// RunLog captures every classification decision and service reference
// request made during one process run.
type RunLog struct {
	RunID       string           `json:"runId"`
	StartTime   time.Time        `json:"startTime"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Decisions   []DecisionRecord `json:"decisions"`
	Requests    []RequestRecord  `json:"requests"`
	Fallbacks   []FallbackRecord `json:"fallbacks,omitempty"`
}

// DecisionRecord is one answer to "is this operation read-only?".
type DecisionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Operation string    `json:"operation"`
	ReadOnly  bool      `json:"readOnly"`
	Source    string    `json:"source"`
	Error     string    `json:"error,omitempty"`
}

// RequestRecord tracks a single GET against the service reference endpoints.
type RequestRecord struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	URL        string        `json:"url"`
	StatusCode int           `json:"statusCode,omitempty"`
	Bytes      int           `json:"bytes,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
}

// FallbackRecord notes that a cached copy was used in place of a failed fetch.
type FallbackRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key"`
	Reason    string    `json:"reason"`
}
