// Package files validates and inspects user-attached files.
//
// Only descriptors and text content ever reach the rest of the system:
// binary payloads contribute name/type/size metadata to the generation
// context, never raw bytes.
package files

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// MaxFileSize is the largest accepted attachment.
const MaxFileSize = 10 << 20 // 10 MiB

// MaxNameLength bounds attachment filenames.
const MaxNameLength = 255

var (
	// ErrInvalidName is returned when the filename fails validation.
	ErrInvalidName = errors.New("invalid filename")

	// ErrTooLarge is returned when the attachment exceeds MaxFileSize.
	ErrTooLarge = errors.New("file too large")
)

// File is one attachment: its descriptor plus raw content.
type File struct {
	Name    string
	Type    string
	Content []byte
}

// Size returns the content length in bytes.
func (f *File) Size() int64 { return int64(len(f.Content)) }

// ValidateName checks that a filename is safe for use.
//
// Rules:
//   - Must not be empty or longer than MaxNameLength
//   - Must not contain path separators or null bytes
//   - Must not be "." or ".."
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if len(name) > MaxNameLength {
		return ErrInvalidName
	}
	for _, c := range name {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrInvalidName
		}
	}
	if name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}

// Validate checks a file against the naming and size rules.
func Validate(f *File) error {
	if err := ValidateName(f.Name); err != nil {
		return fmt.Errorf("%w: %q", err, f.Name)
	}
	if f.Size() > MaxFileSize {
		return fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrTooLarge, f.Name, f.Size(), MaxFileSize)
	}
	return nil
}

// textLikeTypes are MIME prefixes whose content may be folded into the
// generation context verbatim.
var textLikeTypes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/x-yaml",
	"application/javascript",
}

// textLikeExtensions cover common text files uploaded without a MIME type.
var textLikeExtensions = []string{
	".txt", ".md", ".csv", ".json", ".xml", ".yaml", ".yml",
	".go", ".py", ".js", ".ts", ".sh", ".sql", ".html", ".css", ".toml",
}

// IsTextLike reports whether the file's content may be inlined into the
// model context. The decision uses the declared MIME type, the filename
// extension, and a UTF-8 validity check of the content itself.
func IsTextLike(f *File) bool {
	declared := strings.ToLower(f.Type)
	for _, prefix := range textLikeTypes {
		if strings.HasPrefix(declared, prefix) {
			return utf8.Valid(f.Content)
		}
	}

	lower := strings.ToLower(f.Name)
	for _, ext := range textLikeExtensions {
		if strings.HasSuffix(lower, ext) {
			return utf8.Valid(f.Content)
		}
	}

	return false
}

// Format is the detected structure of a text attachment.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatXML     Format = "xml"
	FormatPlain   Format = "plain"
	FormatUnknown Format = "unknown"
)

// Sniff detects the structural format of text content. Binary content
// returns FormatUnknown.
func Sniff(f *File) Format {
	if !IsTextLike(f) {
		return FormatUnknown
	}

	trimmed := strings.TrimSpace(string(f.Content))
	if trimmed == "" {
		return FormatPlain
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if json.Valid([]byte(trimmed)) {
			return FormatJSON
		}
	}

	if trimmed[0] == '<' && wellFormedXML(trimmed) {
		return FormatXML
	}

	if looksLikeCSV(trimmed) {
		return FormatCSV
	}

	return FormatPlain
}

// wellFormedXML reports whether the content parses as XML with at least one
// element.
func wellFormedXML(content string) bool {
	dec := xml.NewDecoder(strings.NewReader(content))
	sawElement := false
	for {
		tok, err := dec.Token()
		switch {
		case err == io.EOF:
			return sawElement
		case err != nil:
			return false
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
}

// looksLikeCSV accepts content that parses as CSV with a consistent column
// count of at least two across at least two rows.
func looksLikeCSV(content string) bool {
	reader := csv.NewReader(strings.NewReader(content))
	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return false
	}
	width := len(records[0])
	if width < 2 {
		return false
	}
	for _, rec := range records[1:] {
		if len(rec) != width {
			return false
		}
	}
	return true
}
