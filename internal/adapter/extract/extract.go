package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"docrag/internal/domain"
)

const (
	mimePDF = "application/pdf"
	mimeZip = "application/zip"
)

// Extractor dispatches on file extension to a format-specific reader.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	return Extract(filename, data)
}

// Supported reports whether filename has an extension Extract can read.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt":
		return true
	default:
		return false
	}
}

// Extract returns the plain text of a .pdf, .docx or .txt file.
func Extract(filename string, data []byte) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		if err := expectMIME(data, mimePDF); err != nil {
			return "", fmt.Errorf("%s: %w", filename, err)
		}
		return PDFText(data)
	case ".docx":
		if err := expectMIME(data, mimeZip); err != nil {
			return "", fmt.Errorf("%s: %w", filename, err)
		}
		return DOCXText(data)
	case ".txt":
		return PlainText(data), nil
	default:
		return "", fmt.Errorf("%s: %w", filename, domain.ErrUnsupportedFileType)
	}
}

// expectMIME checks that the sniffed type of data is want or derives from it.
func expectMIME(data []byte, want string) error {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(want) {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", domain.ErrContentMismatch, detected.String())
}

// PlainText decodes UTF-8, dropping invalid byte sequences.
func PlainText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

// PDFText extracts the text of every readable page, pages joined by "\n".
// Pages that fail to decode are skipped. The pdf reader panics on some
// malformed input; that is reported as an error.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}

// DOCXText returns the paragraphs of word/document.xml joined by newlines.
func DOCXText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document part: %w", err)
		}
		defer rc.Close()
		return docxParagraphs(rc)
	}

	return "", fmt.Errorf("failed to read docx: word/document.xml missing")
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br", "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
