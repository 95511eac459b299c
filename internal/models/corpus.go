package models

// Corpus import resources
const (
	ResourceVideos   = "videos"
	ResourceComments = "comments"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Line    int         `json:"line"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ImportResult summarises one corpus import
type ImportResult struct {
	Resource        string            `json:"resource"`
	TotalRecords    int               `json:"total_records"`
	SuccessfulCount int               `json:"successful"`
	FailedCount     int               `json:"failed"`
	DurationMs      int64             `json:"duration_ms"`
	RowsPerSec      float64           `json:"rows_per_sec,omitempty"`
	Errors          []ValidationError `json:"errors,omitempty"`
	ErrorCount      int               `json:"error_count"`
}

// CorpusStats holds corpus counts
type CorpusStats struct {
	Videos   int `json:"videos"`
	Comments int `json:"comments"`
	Replies  int `json:"replies"`
}
