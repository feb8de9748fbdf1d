package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// LoadResume returns the text of the resume at path. Plain text and markdown
// are read as is; PDF, DOCX, DOC, RTF and ODT go through docconv.
func LoadResume(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	var text string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", "":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read resume: %w", err)
		}
		text = string(content)
	case ".pdf", ".docx", ".doc", ".rtf", ".odt":
		res, err := docconv.ConvertPath(path)
		if err != nil {
			return "", fmt.Errorf("convert resume %s: %w", path, err)
		}
		text = res.Body
	default:
		return "", fmt.Errorf("unsupported resume file type: %s", ext)
	}
	return strings.TrimSpace(text), nil
}
