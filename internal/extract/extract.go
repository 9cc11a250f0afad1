package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupportedType = errors.New("unsupported file type")

var supportedExts = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".pptx": {},
	".xlsx": {},
	".txt":  {},
	".md":   {},
	".json": {},
	".csv":  {},
}

// Supported reports whether text can be extracted from the named file.
func Supported(name string) bool {
	_, ok := supportedExts[normalizeExt(name)]
	return ok
}

// Text extracts plain text from a file's raw bytes, dispatching on the
// file name's extension.
func Text(name string, data []byte) (string, error) {
	ext := normalizeExt(name)
	switch ext {
	case ".pdf":
		return PDF(data)
	case ".docx":
		return Docx(data)
	case ".pptx":
		return Pptx(data)
	case ".xlsx":
		return Xlsx(data)
	case ".txt", ".md", ".json", ".csv":
		return Plain(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, strings.TrimPrefix(ext, "."))
	}
}

func normalizeExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
