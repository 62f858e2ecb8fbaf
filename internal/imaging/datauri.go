package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const defaultMIMEType = "image/jpeg"

var ErrInvalidDataURI = errors.New("invalid data URI")

// EncodeDataURI turns raw image bytes into a MIME-prefixed base64 data URI.
func EncodeDataURI(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURI is the inverse of EncodeDataURI: it recovers the raw bytes
// and MIME type for submission to the inference provider.
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}

	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, "", fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}

	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("%w: only base64 encoding is supported", ErrInvalidDataURI)
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = defaultMIMEType
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}

	return data, mimeType, nil
}
