package llm

import (
	"encoding/base64"
	"errors"
	"strings"
)

const defaultImageMIME = "image/jpeg"

// parseDataURL splits "data:<mime>;base64,<payload>" into its MIME type and
// decoded bytes. A bare base64 payload is accepted and assumed to be JPEG.
func parseDataURL(s string) (mime string, data []byte, err error) {
	mime = defaultImageMIME
	payload := s
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return "", nil, errors.New("malformed data URL")
		}
		meta := s[len("data:"):i]
		payload = s[i+1:]
		if m, _, _ := strings.Cut(meta, ";"); m != "" {
			mime = m
		}
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}

// asDataURL wraps a bare base64 payload so it can be sent as an image URL.
func asDataURL(s string) string {
	if strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "data:" + defaultImageMIME + ";base64," + s
}
