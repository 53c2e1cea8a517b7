package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupported is returned for formats with no text extractor.
	ErrUnsupported = errors.New("unsupported file format")
	// ErrNoText is returned when a file decodes but carries no text.
	ErrNoText = errors.New("no readable text")
)

// Format names the extractor chosen for a file.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat picks an extractor from the file extension, falling back to
// content sniffing for PDFs and OOXML workbooks.
func DetectFormat(fileName string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".csv", ".json", ".txt", ".xml":
		return FormatText
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF
	}
	if isWorkbookZip(data) {
		return FormatXLSX
	}
	return FormatText
}

// Text extracts readable text from an uploaded file.
func Text(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch format := DetectFormat(fileName, data); format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatXLSX:
		text, err = extractXLSX(data)
	case FormatXLS:
		err = fmt.Errorf("%w: legacy .xls workbooks", ErrUnsupported)
	default:
		text = decodeText(data)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", fileName, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extract %s: %w", fileName, ErrNoText)
	}
	return text, nil
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isWorkbookZip(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "xl/workbook.xml" {
			return true
		}
	}
	return false
}
