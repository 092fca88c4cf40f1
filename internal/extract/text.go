package extract

import (
	"fmt"
	"unicode/utf8"
)

// extractTXT validates the bytes are UTF-8 and returns them as a string.
func extractTXT(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file is not valid UTF-8")
	}
	return string(data), nil
}
