// Package extract turns an uploaded file's bytes into plain text.
package extract

import (
	"fmt"
	"strings"
)

// SupportedTypes lists the file types this package can extract.
var SupportedTypes = []string{"pdf", "docx", "txt"}

// IsSupported reports whether fileType (without the leading dot) can be
// extracted.
func IsSupported(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "pdf", "docx", "txt":
		return true
	default:
		return false
	}
}

// Text extracts plain text from data according to fileType ("pdf", "docx",
// or "txt"). The returned string is the document's full text with pages or
// paragraphs concatenated.
func Text(fileType string, data []byte) (string, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt":
		return extractTXT(data)
	default:
		return "", fmt.Errorf("unsupported file type: %s", fileType)
	}
}
