package figma

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidFileURL = errors.New("invalid_figma_url")

	fileKeyExpression = regexp.MustCompile(`(?:file|design)/([a-zA-Z0-9]+)`)
)

// FileReference is the file key and optional node id carried by a Figma link.
type FileReference struct {
	FileKey string
	NodeID  string
}

// ParseFileURL extracts the file key from a file/<key> or design/<key> link.
func ParseFileURL(rawURL string) (FileReference, error) {
	trimmed := strings.TrimSpace(rawURL)
	match := fileKeyExpression.FindStringSubmatch(trimmed)
	if match == nil {
		return FileReference{}, ErrInvalidFileURL
	}
	reference := FileReference{FileKey: match[1]}
	if parsed, err := url.Parse(trimmed); err == nil {
		reference.NodeID = parsed.Query().Get("node-id")
	}
	return reference, nil
}
