package parser

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"sitechat-rag/internal/models"
)

// ExtractText converts an uploaded file into plain text suitable for
// chunking. The format is chosen by filename extension; uploads arrive as
// in-memory bytes, never paths.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return string(data), nil
	case ".md":
		return extractMarkdown(data)
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".xlsx":
		return extractXLSX(data)
	default:
		return "", fmt.Errorf("%w: unsupported file format %q", models.ErrInvalidInput, ext)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return extractTagText(content, "w:t"), nil
}

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("read xlsx: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

// extractMarkdown renders markdown to HTML and strips the tags, leaving the
// readable text for chunking.
func extractMarkdown(data []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(data, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return stripTags(buf.String()), nil
}

// extractTagText pulls the text runs out of XML content, e.g. every
// <w:t>...</w:t> in a DOCX document body. Attributes on the opening tag
// (xml:space and friends) are tolerated.
func extractTagText(xmlContent, tag string) string {
	var text strings.Builder
	closeTag := "</" + tag + ">"
	parts := strings.Split(xmlContent, "<"+tag)
	for i, part := range parts {
		if i == 0 || part == "" {
			continue
		}
		// distinguish <w:t> / <w:t attr> from longer tag names like <w:tbl>
		if part[0] != '>' && part[0] != ' ' {
			continue
		}
		start := strings.Index(part, ">")
		if start < 0 {
			continue
		}
		end := strings.Index(part, closeTag)
		if end < start {
			continue
		}
		text.WriteString(html.UnescapeString(part[start+1 : end]))
		text.WriteString(" ")
	}
	return strings.TrimSpace(text.String())
}

func stripTags(htmlContent string) string {
	var text strings.Builder
	inTag := false
	for _, r := range htmlContent {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			text.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(text.String()))
}
