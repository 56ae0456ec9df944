package domain

import (
	"encoding/base64"
	"fmt"
	"strings"

	"chat-sync/errors"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes caps the raw image size before encoding. Anything
// larger is rejected as a validation error, never sent to a transport.
const MaxImageBytes = 5 << 20

// ValidateImage checks size and sniffed content type of a raw payload.
// Detection is content based; the filename is not trusted.
func ValidateImage(data []byte) error {
	if len(data) > MaxImageBytes {
		return errors.ErrImageTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return errors.ErrNotAnImage
	}
	return nil
}

// EncodeImage validates a raw image and returns its data URL
// representation, the bounded string form carried by both transports.
func EncodeImage(data []byte) (string, error) {
	if err := ValidateImage(data); err != nil {
		return "", err
	}
	mt := mimetype.Detect(data)
	return fmt.Sprintf("data:%s;base64,%s", mt.String(),
		base64.StdEncoding.EncodeToString(data)), nil
}
