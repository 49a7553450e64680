package source

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies both the user-facing source selector and the payload variant
// that satisfies it.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindURL   Kind = "url"
	KindText  Kind = "text"
)

// ParseKind validates a selector value coming from a request or a flag.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImage, KindPDF, KindURL, KindText:
		return k, nil
	default:
		return "", fmt.Errorf("unknown source type %q (want image, pdf, url or text)", s)
	}
}

// Payload is the normalized representation of a source. Exactly one of
// Image, Document, PlainText or RemoteURL implements it.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Image holds raw image bytes. Encoding happens only at the wire boundary.
type Image struct {
	Data      []byte
	MediaType string
}

// Document holds opaque document bytes (PDF) forwarded as-is to the provider.
type Document struct {
	Data      []byte
	MediaType string
}

// PlainText holds text extracted from a word-processor, spreadsheet or text file.
type PlainText struct {
	Text string
}

// RemoteURL is an unvalidated URL string; only the provider can tell whether it is reachable.
type RemoteURL struct {
	URL string
}

func (Image) Kind() Kind     { return KindImage }
func (Document) Kind() Kind  { return KindPDF }
func (PlainText) Kind() Kind { return KindText }
func (RemoteURL) Kind() Kind { return KindURL }

func (Image) isPayload()     {}
func (Document) isPayload()  {}
func (PlainText) isPayload() {}
func (RemoteURL) isPayload() {}

// Meta is display metadata kept next to the active payload.
type Meta struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	Size      int    `json:"size"`
}

// MetaFor describes a decoded payload for display. size is the size of the
// original input.
func MetaFor(p Payload, name string, size int) Meta {
	m := Meta{Name: name, Size: size}
	switch v := p.(type) {
	case Image:
		m.MediaType = v.MediaType
	case Document:
		m.MediaType = v.MediaType
	case PlainText:
		m.MediaType = "text/plain"
	}
	return m
}

// DecodeError reports a file that could not be turned into a payload.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
