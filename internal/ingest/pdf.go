package ingest

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDFText extracts the plain text of a PDF document.
// Structural segmentation happens afterwards on the extracted text.
func extractPDFText(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", &ParseError{Format: FormatPDF, Reason: fmt.Sprintf("failed to open PDF: %v", err)}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &ParseError{Format: FormatPDF, Reason: fmt.Sprintf("failed to extract text: %v", err)}
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", &ParseError{Format: FormatPDF, Reason: fmt.Sprintf("failed to read text: %v", err)}
	}

	return buf.String(), nil
}
