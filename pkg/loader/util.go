package loader

import (
	"mime"
	"strings"
)

func CacheKey(file GraphFile) string {
	return file.ID + ":" + file.FilePath
}

// IsTextContentType reports whether a Content-Type header describes a
// textual payload that can be ingested. An empty header is accepted and
// left to content sniffing by the caller.
func IsTextContentType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/xhtml+xml", "application/xml", "application/json", "application/markdown":
		return true
	}
	return false
}

// IsHTMLContentType reports whether the payload should go through article
// extraction before ingestion.
func IsHTMLContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// NormalizeNewlines converts CRLF and CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
