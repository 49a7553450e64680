package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBodyPart = "word/document.xml"

// extractDocxText returns the raw text of a .docx file: one paragraph per
// block, blank line between paragraphs. Formatting is discarded.
func extractDocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a docx archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("docx archive has no " + docxBodyPart)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", docxBodyPart, err)
	}
	defer rc.Close()

	return readDocumentXML(rc)
}

// readDocumentXML walks the body part. Paragraphs can nest (text boxes sit
// inside a run of their anchor paragraph), so each open paragraph keeps the
// slot it was given when it started and the outer text is not lost.
func readDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []*openParagraph
		inText     bool
	)
	top := func() *strings.Builder {
		if len(open) == 0 {
			return nil
		}
		return &open[len(open)-1].text
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr", "Fallback":
				// paragraph properties hold tab stop definitions, and
				// Fallback repeats the content of its Choice sibling
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("malformed %s: %w", docxBodyPart, err)
				}
			case "p":
				open = append(open, &openParagraph{slot: len(paragraphs)})
				paragraphs = append(paragraphs, "")
			case "t":
				inText = true
			case "tab":
				if b := top(); b != nil {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if b := top(); b != nil {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if len(open) > 0 {
					done := open[len(open)-1]
					open = open[:len(open)-1]
					paragraphs[done.slot] = done.text.String()
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if b := top(); inText && b != nil {
				b.Write(t)
			}
		}
	}

	kept := paragraphs[:0]
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n"), nil
}

type openParagraph struct {
	slot int
	text strings.Builder
}
