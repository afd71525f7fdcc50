package ingestion

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PlainTextParser reads a file as-is.
type PlainTextParser struct{}

// Parse implements Parser.
func (PlainTextParser) Parse(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %w", err)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

// PDFParser extracts the text of every page in order, one page per line block.
type PDFParser struct{}

// Parse implements Parser.
func (PDFParser) Parse(_ context.Context, path string) (text string, err error) {
	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return strings.Join(pages, "\n"), nil
}

const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// ErrNoDocumentBody is returned for .docx archives without word/document.xml.
var ErrNoDocumentBody = errors.New("word/document.xml not found")

// DocxParser extracts every paragraph of a .docx document, one paragraph per line.
type DocxParser struct{}

// Parse implements Parser.
func (DocxParser) Parse(_ context.Context, path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer func() { _ = archive.Close() }()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document body: %w", err)
		}
		defer func() { _ = rc.Close() }()
		return docxParagraphs(rc)
	}
	return "", ErrNoDocumentBody
}

// docxParagraphs streams document.xml and joins paragraph text with newlines.
// Tabs and line breaks inside a paragraph are kept.
func docxParagraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document body: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
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

// WebParser reads web pages through a TextFetcher.
type WebParser struct {
	Fetcher TextFetcher
}

// Parse implements Parser.
func (p WebParser) Parse(ctx context.Context, url string) (string, error) {
	if p.Fetcher == nil {
		return "", errors.New("no web fetcher configured")
	}
	return p.Fetcher.FetchText(ctx, url)
}
