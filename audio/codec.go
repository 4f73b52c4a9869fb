package audio

import (
	"fmt"

	"github.com/cloudwego/base64x"
)

// Encode returns the padded standard base64 form of pcm.
func Encode(pcm []byte) string {
	return base64x.StdEncoding.EncodeToString(pcm)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	out, err := base64x.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("audio: invalid base64: %w", err)
	}
	return out, nil
}
