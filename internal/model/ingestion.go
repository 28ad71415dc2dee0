package model

import "time"

// FileContext is the provenance supplied by whoever triggered ingestion.
type FileContext struct {
	FileName    string
	BankID      string
	BankName    string
	UserID      string
	FileDate    time.Time
	ProcessedAt time.Time
}

// Ingestion run statuses.
const (
	IngestionStatusSucceeded = "SUCCEEDED"
	IngestionStatusFailed    = "FAILED"
)

// IngestionSummary is the per-file result of an ingestion, persisted in ingestion_runs.
type IngestionSummary struct {
	ID                 string    `json:"id"`
	FileName           string    `json:"fileName"`
	Parser             string    `json:"parser,omitempty"`
	Kind               FileKind  `json:"kind,omitempty"`
	BankID             string    `json:"bankId"`
	UserID             string    `json:"userId,omitempty"`
	FileDate           time.Time `json:"fileDate"`
	Status             string    `json:"status"`
	RowsTotal          int       `json:"rowsTotal"`
	RowsMapped         int       `json:"rowsMapped"`
	RowsSkipped        int       `json:"rowsSkipped"`
	FieldErrors        int       `json:"fieldErrors"`
	RecordsInserted    int       `json:"recordsInserted"`
	DuplicatesSkipped  int       `json:"duplicatesSkipped"`
	KeysReconciled     int       `json:"keysReconciled"`
	SameDateDuplicates []string  `json:"sameDateDuplicates,omitempty"`
	Error              string    `json:"error,omitempty"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
}
