package veo

import (
	"encoding/base64"
	"errors"
	"path"
	"strings"

	"github.com/bejocbrian/bringYourKey/internal/domain/model"
)

// decodeBase64 accepts standard and URL-safe alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errors.New("decode inline video: invalid base64")
}

// artifactName derives a stable file name from the operation id.
func artifactName(handle model.JobHandle, mimeType string) string {
	id := path.Base(string(handle))
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)
	if id == "" || id == "." || id == "-" {
		id = "output"
	}
	return "veo-" + id + extensionFor(mimeType)
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}
