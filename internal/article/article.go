package article

import "time"

// Status tracks an Article through the pipeline. Transitions move strictly
// forward; failure statuses are terminal for the Article but not for the run.
type Status string

const (
	StatusDiscovered       Status = "discovered"
	StatusExtracted        Status = "extracted"
	StatusExtractionFailed Status = "extraction_failed"
	StatusAnalyzed         Status = "analyzed"
	StatusAnalysisFailed   Status = "analysis_failed"
	StatusRejected         Status = "rejected"
	StatusRanked           Status = "ranked"
	StatusCancelled        Status = "cancelled"
)

// Rejection reasons recorded alongside StatusRejected.
const (
	ReasonDuplicate    = "duplicate"
	ReasonLowRelevance = "low_relevance"
	ReasonTimeout      = "timeout"
	ReasonCancelled    = "cancelled"
)

// Article is one discovered news item. URL is the unique key within a run.
type Article struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	RawText     string     `json:"raw_text,omitempty"`

	// RelevanceScore and Takeaway are set together by the analyzer, or not
	// at all. Scored reports whether they are present.
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Takeaway       string  `json:"takeaway,omitempty"`
	Scored         bool    `json:"scored"`

	Status       Status `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`

	// DedupGroupID links semantically merged articles; exactly one member
	// of a group appears in the final ranked output.
	DedupGroupID string `json:"dedup_group_id,omitempty"`

	// DiscoveryOrder is the position in the crawler's stable output,
	// used to break score ties deterministically.
	DiscoveryOrder int `json:"discovery_order"`
}

// SetScore records score and takeaway atomically.
func (a *Article) SetScore(score float64, takeaway string) {
	a.RelevanceScore = score
	a.Takeaway = takeaway
	a.Scored = true
}

// StageError is one per-item failure record captured into a run's error list.
// Per-item errors never propagate past the stage boundary; they are visible
// here instead.
type StageError struct {
	Stage  string    `json:"stage"`
	Key    string    `json:"key"` // query or URL the failure belongs to
	Reason string    `json:"reason,omitempty"`
	Cause  string    `json:"cause"`
	At     time.Time `json:"at"`
}
