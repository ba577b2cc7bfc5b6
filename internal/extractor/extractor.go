// Package extractor opens PDF documents and yields their text layer plus
// structural metadata.
package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PageSeparator joins per-page text in ExtractText output.
const PageSeparator = "\f"

// DocumentMetadata is best-effort structural metadata. Missing fields stay
// zero; only an unopenable document is an error.
type DocumentMetadata struct {
	PageCount    int
	Title        string
	Author       string
	CreationDate *time.Time
	IsEncrypted  bool
	Version      string
}

// Extractor reads PDF byte streams. The zero value is ready to use.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractText concatenates the text of every page, separated by
// PageSeparator. A document that cannot be opened is a hard error; a page
// without a text layer contributes an empty page, not an error.
func (e *Extractor) ExtractText(data []byte) (text string, err error) {
	// The underlying reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ExtractText: malformed document: %v", r)
		}
	}()

	reader, err := openReader(data)
	if err != nil {
		return "", fmt.Errorf("ExtractText: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only or damaged page; keep going.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, PageSeparator), nil
}

// Validate reports whether the document can be opened and has at least one
// page. It returns false instead of an error; a missing text layer alone
// does not fail validation.
func (e *Extractor) Validate(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	reader, err := openReader(data)
	if err != nil {
		return false
	}
	return reader.NumPage() > 0
}

// Metadata extracts structural metadata. Individual missing fields are left
// zero rather than failing the call.
func (e *Extractor) Metadata(data []byte) (meta DocumentMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Metadata: malformed document: %v", r)
		}
	}()

	meta.Version = headerVersion(data)

	reader, openErr := openReader(data)
	if openErr != nil {
		if isEncryptedErr(openErr) {
			meta.IsEncrypted = true
			return meta, nil
		}
		return meta, fmt.Errorf("Metadata: %w", openErr)
	}

	meta.PageCount = reader.NumPage()
	meta.IsEncrypted = !reader.Trailer().Key("Encrypt").IsNull()

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = info.Key("Title").Text()
		meta.Author = info.Key("Author").Text()
		if created, ok := parsePDFDate(info.Key("CreationDate").Text()); ok {
			meta.CreationDate = &created
		}
	}

	return meta, nil
}

func openReader(data []byte) (*pdf.Reader, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return reader, nil
}

func isEncryptedErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "password")
}

// headerVersion reads the "%PDF-1.x" header version directly from the byte
// stream.
func headerVersion(data []byte) string {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return ""
	}
	rest := data[len("%PDF-"):]
	end := bytes.IndexAny(rest, "\r\n \t")
	if end == -1 {
		end = len(rest)
	}
	if end > 8 {
		end = 8
	}
	return string(rest[:end])
}

// parsePDFDate parses the PDF date format "D:YYYYMMDDHHmmSS", tolerating
// truncated forms down to "D:YYYY".
func parsePDFDate(s string) (time.Time, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 4 {
		return time.Time{}, false
	}

	// Strip timezone suffix (Z, +hh'mm', -hh'mm').
	if idx := strings.IndexAny(s, "Z+-"); idx != -1 {
		s = s[:idx]
	}

	layouts := []string{"20060102150405", "200601021504", "2006010215", "20060102", "200601", "2006"}
	for _, layout := range layouts {
		if len(s) == len(layout) {
			t, err := time.Parse(layout, s)
			if err != nil {
				return time.Time{}, false
			}
			return t, true
		}
	}
	return time.Time{}, false
}
