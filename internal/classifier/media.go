package classifier

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
)

// Media is an encoded payload submitted to the model.
type Media struct {
	Data     []byte
	MimeType string
}

// IsImage reports whether the payload is a still image.
func (m Media) IsImage() bool {
	return strings.HasPrefix(m.MimeType, "image/")
}

// DataURI encodes the payload as a data URI. PNG frames use the
// document-context image encoder.
func (m Media) DataURI() (string, error) {
	if len(m.Data) == 0 || m.MimeType == "" {
		return "", fmt.Errorf("%w: payload and mime type required", ErrInvalidMedia)
	}

	switch m.MimeType {
	case "image/png":
		return encoding.EncodeImageDataURI(m.Data, document.PNG)
	default:
		return fmt.Sprintf("data:%s;base64,%s", m.MimeType, base64.StdEncoding.EncodeToString(m.Data)), nil
	}
}
