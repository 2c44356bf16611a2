package models

// DefaultAlpha is the hybrid fusion weight used when the caller does not pick one.
const DefaultAlpha = 0.5

// SearchQuery is the request body of the search API and the CLI search command.
// Alpha is a pointer so that "unset" and 0.0 (pure keyword) are distinguishable.
type SearchQuery struct {
	Query  string   `json:"query"`
	K      int      `json:"k,omitempty"`
	Alpha  *float64 `json:"alpha,omitempty"`
	Filter Filter   `json:"filter,omitempty"`
}

// SearchResponse wraps the ranked results of one query.
type SearchResponse struct {
	Query     string          `json:"query"`
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Hybrid    bool            `json:"hybrid"`
	Alpha     *float64        `json:"alpha,omitempty"`
}

// AddDocumentsRequest is the request body of the add-documents API.
type AddDocumentsRequest struct {
	Documents []Document `json:"documents"`
}

// AddDocumentsResponse lists the chunk ids in flattened chunk order.
type AddDocumentsResponse struct {
	IDs       []string `json:"ids"`
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
}
