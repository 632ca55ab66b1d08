package imageutil

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// BuildDataURI encodes image bytes as the data: URI payload the OCR pipeline
// expects
func BuildDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI splits a data: URI into its mime type and decoded payload
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}

	comma := strings.Index(uri, ",")
	if comma < 0 {
		return "", nil, fmt.Errorf("malformed data URI: no payload separator")
	}

	meta := uri[len("data:"):comma]
	mimeType := strings.TrimSuffix(meta, ";base64")

	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return "", nil, fmt.Errorf("malformed data URI payload: %w", err)
	}

	return mimeType, data, nil
}

// DetectImageMime sniffs the mime type of raw image bytes
func DetectImageMime(data []byte) string {
	return http.DetectContentType(data)
}
