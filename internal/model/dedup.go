package model

import "time"

// Anomaly kinds surfaced for manual review.
const (
	AnomalyUnresolvedTie     = "UNRESOLVED_TIE"
	AnomalyVersionTie        = "VERSION_TIE"
	AnomalyMissingPosition   = "MISSING_POSITION"
	AnomalyReconcileFailure  = "RECONCILE_FAILURE"
	AnomalyGroupFailure      = "GROUP_FAILURE"
	AnomalySameDateDuplicate = "SAME_DATE_DUPLICATE"
)

// Anomaly is a reconciliation finding that was deliberately not auto-resolved.
type Anomaly struct {
	Kind        string   `json:"kind"`
	UniqueKey   string   `json:"uniqueKey,omitempty"`
	Identity    string   `json:"identity,omitempty"`
	PositionIDs []string `json:"positionIds,omitempty"`
	Detail      string   `json:"detail"`
}

// DedupSummary is the structured result of one deduplication run.
type DedupSummary struct {
	ID                 string        `json:"id"`
	Mode               string        `json:"mode"`
	StartedAt          time.Time     `json:"startedAt"`
	FinishedAt         time.Time     `json:"finishedAt"`
	GroupsFound        int           `json:"groupsFound"`
	RecordsKept        int           `json:"recordsKept"`
	RecordsDeleted     int           `json:"recordsDeleted"`
	RecordsFlagged     int           `json:"recordsFlagged"`
	RecordsRekeyed     int           `json:"recordsRekeyed"`
	KeysScanned        int           `json:"keysScanned"`
	VersionsRenumbered int           `json:"versionsRenumbered"`
	LatestChanged      int           `json:"latestChanged"`
	Anomalies          []Anomaly     `json:"anomalies"`
	Errors             []string      `json:"errors"`
	Duration           time.Duration `json:"duration"`
}

// Changed reports whether the run modified the store.
func (s DedupSummary) Changed() bool {
	return s.RecordsDeleted > 0 || s.RecordsFlagged > 0 || s.RecordsRekeyed > 0 ||
		s.VersionsRenumbered > 0 || s.LatestChanged > 0
}
