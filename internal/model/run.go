package model

import "time"

// RunStatus represents the terminal state of a duplicate scan run.
type RunStatus string

const (
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is the persisted summary of one duplicate scan.
type Run struct {
	ID                 string        `json:"id"`
	OwnerID            string        `json:"owner_id,omitempty"`
	Status             RunStatus     `json:"status"`
	EligibleProperties int           `json:"eligible_properties"`
	PairsEnumerated    int           `json:"pairs_enumerated"`
	PairsPassedFunnel  int           `json:"pairs_passed_funnel"`
	OracleUsed         bool          `json:"oracle_used"`
	OracleCalls        int           `json:"oracle_calls"`
	FallbackCount      int           `json:"fallback_count"`
	MatchCount         int           `json:"match_count"`
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration_ns"`
}

// Match is the persisted form of an accepted duplicate match.
type Match struct {
	RunID          string   `json:"run_id"`
	Rank           int      `json:"rank"`
	PairKey        string   `json:"pair_key"`
	PropertyAID    string   `json:"property_a_id"`
	PropertyBID    string   `json:"property_b_id"`
	BasicScore     float64  `json:"basic_score"`
	Similarity     float64  `json:"similarity_score"`
	Confidence     float64  `json:"confidence"`
	Recommendation string   `json:"recommendation"`
	UsedFallback   bool     `json:"used_fallback"`
	Explanation    string   `json:"explanation"`
	Reasons        []string `json:"reasons"`
}
