package request

// DedupRequest is the optional body of POST /api/maintenance/dedup.
type DedupRequest struct {
	Mode string `json:"mode"`
}

// ReclassifyRequest is the body of POST /api/maintenance/reclassify.
type ReclassifyRequest struct {
	ISINs []string `json:"isins"`
}
