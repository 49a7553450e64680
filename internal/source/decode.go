package source

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const pdfMediaType = "application/pdf"

var (
	wordExtensions  = map[string]bool{".docx": true}
	sheetExtensions = map[string]bool{".xlsx": true, ".xlsm": true, ".xls": true}
)

// Decode normalizes an uploaded file into a Payload.
//
// Dispatch is by media type first (image/*, then PDF), then by filename
// extension (word-processor, spreadsheet), and finally falls back to UTF-8
// text. When declaredType is empty or generic the media type is sniffed from
// the bytes.
func Decode(data []byte, filename, declaredType string) (Payload, error) {
	mediaType := normalizeMediaType(declaredType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = normalizeMediaType(mimetype.Detect(data).String())
	}
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return Image{Data: data, MediaType: mediaType}, nil
	case mediaType == pdfMediaType:
		return Document{Data: data, MediaType: mediaType}, nil
	case wordExtensions[ext]:
		text, err := extractDocxText(data)
		if err != nil {
			return nil, &DecodeError{Filename: filename, Err: err}
		}
		return PlainText{Text: text}, nil
	case sheetExtensions[ext]:
		text, err := extractWorkbookText(data, ext)
		if err != nil {
			return nil, &DecodeError{Filename: filename, Err: err}
		}
		return PlainText{Text: text}, nil
	default:
		return PlainText{Text: decodeUTF8(data)}, nil
	}
}

// normalizeMediaType lowercases and strips parameters such as "; charset=utf-8".
func normalizeMediaType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func decodeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff")
	}
	return strings.TrimPrefix(strings.ToValidUTF8(string(data), "\uFFFD"), "\ufeff")
}
