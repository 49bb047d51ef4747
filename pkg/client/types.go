package client

// IngestURLRequest is the body of POST /ingest/url.
type IngestURLRequest struct {
	BookID int64  `json:"bookId"`
	URL    string `json:"url"`
}

// IngestTextRequest is the body of POST /ingest/text.
type IngestTextRequest struct {
	BookID int64  `json:"bookId"`
	Text   string `json:"text"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
