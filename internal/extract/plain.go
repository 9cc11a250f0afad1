package extract

import (
	"bytes"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Plain passes text through, stripping a UTF-8 BOM and replacing any
// invalid byte sequences so downstream JSON encoding never chokes.
func Plain(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return string(data), nil
}
