package source

import "encoding/base64"

// EncodeBase64 is the wire encoding used for inline binary content.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DataURL renders inline content as a data: URL, the form OpenAI-compatible
// vision endpoints accept for images.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + EncodeBase64(data)
}
