package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// textExtractor reads the file verbatim as UTF-8 text.
type textExtractor struct{}

func (textExtractor) Extract(path string) (string, map[string]any, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided path is the operation
	if err != nil {
		return "", nil, fmt.Errorf("read text file: %w", err)
	}
	return string(b), nil, nil
}

// pdfExtractor pulls the text layer out of a PDF and records the page count.
type pdfExtractor struct{}

func (pdfExtractor) Extract(path string) (string, map[string]any, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", nil, fmt.Errorf("extract pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, content); err != nil {
		return "", nil, fmt.Errorf("read pdf text: %w", err)
	}

	metadata := map[string]any{}
	if pages, err := api.PageCountFile(path); err == nil {
		metadata["page_count"] = pages
	}
	return sb.String(), metadata, nil
}

// docxExtractor parses word/document.xml out of the docx zip container,
// keeping text runs and paragraph breaks.
type docxExtractor struct{}

func (docxExtractor) Extract(path string) (string, map[string]any, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, fmt.Errorf("open docx container: %w", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", nil, fmt.Errorf("docx missing word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	text, paragraphs, err := parseDocxXML(rc)
	if err != nil {
		return "", nil, err
	}
	return text, map[string]any{"paragraph_count": paragraphs}, nil
}

func parseDocxXML(r io.Reader) (string, int, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	paragraphs := 0
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs++
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), paragraphs, nil
}

// rtfExtractor strips RTF control words and groups, keeping visible text.
type rtfExtractor struct{}

// rtfSkipGroups are destination groups whose content is not document text.
var rtfSkipGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
}

func (rtfExtractor) Extract(path string) (string, map[string]any, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided path is the operation
	if err != nil {
		return "", nil, fmt.Errorf("read rtf file: %w", err)
	}
	if !strings.HasPrefix(string(b), `{\rtf`) {
		return "", nil, fmt.Errorf("not an rtf document")
	}
	return stripRTF(string(b)), nil, nil
}

func stripRTF(src string) string {
	var sb strings.Builder
	runes := []rune(src)
	// skipDepth tracks how deep we are inside a skipped destination group.
	depth, skipUntil := 0, -1

	i := 0
	for i < len(runes) {
		r := runes[i]
		switch r {
		case '{':
			depth++
			i++
			// {\* ...} marks an ignorable destination.
			if i+1 < len(runes) && runes[i] == '\\' && runes[i+1] == '*' && skipUntil < 0 {
				skipUntil = depth
			}
		case '}':
			if depth == skipUntil {
				skipUntil = -1
			}
			depth--
			i++
		case '\\':
			i++
			if i >= len(runes) {
				break
			}
			next := runes[i]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if skipUntil < 0 {
					sb.WriteRune(next)
				}
				i++
			case next == '\'':
				// \'hh hex-escaped byte.
				if i+2 < len(runes) {
					// Hex escapes are Windows-1252-ish code points; for the
					// Latin-1 range the rune value matches directly.
					if v, err := strconv.ParseUint(string(runes[i+1:i+3]), 16, 8); err == nil && skipUntil < 0 {
						sb.WriteRune(rune(v))
					}
					i += 3
				} else {
					i = len(runes)
				}
			case unicode.IsLetter(next):
				word, rest := readControlWord(runes, i)
				i = rest
				if skipUntil >= 0 {
					break
				}
				switch word {
				case "par", "line":
					sb.WriteString("\n")
				case "tab":
					sb.WriteString("\t")
				default:
					if rtfSkipGroups[word] {
						skipUntil = depth
					}
				}
			default:
				i++
			}
		default:
			if skipUntil < 0 && r != '\r' && r != '\n' {
				sb.WriteRune(r)
			}
			i++
		}
	}
	return strings.TrimSpace(sb.String())
}

// readControlWord consumes a control word starting at start: letters, an
// optional signed numeric parameter and one optional trailing space.
func readControlWord(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && unicode.IsLetter(runes[i]) {
		i++
	}
	word := string(runes[start:i])
	if i < len(runes) && (runes[i] == '-' || unicode.IsDigit(runes[i])) {
		i++
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
	}
	if i < len(runes) && runes[i] == ' ' {
		i++
	}
	return word, i
}
