package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello from Word.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDocx(t *testing.T) {
	data := buildZip(t, map[string]string{"word/document.xml": docxBody})

	got, err := Docx(data)
	require.NoError(t, err)
	assert.Contains(t, got, "Hello from Word.")
	assert.Contains(t, got, "Second paragraph.")
	assert.Contains(t, got, "\n\n")
}

func TestDocxMissingDocumentXML(t *testing.T) {
	data := buildZip(t, map[string]string{"other.xml": "<a/>"})
	_, err := Docx(data)
	assert.Error(t, err)
}

func TestDocxNotAZip(t *testing.T) {
	_, err := Docx([]byte("plain bytes"))
	assert.Error(t, err)
}

func TestPptxSlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<?xml version="1.0"?><p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	data := buildZip(t, map[string]string{
		"ppt/slides/slide2.xml":  slide("second slide"),
		"ppt/slides/slide1.xml":  slide("first slide"),
		"ppt/slides/slide10.xml": slide("tenth slide"),
	})

	got, err := Pptx(data)
	require.NoError(t, err)

	first := strings.Index(got, "first slide")
	second := strings.Index(got, "second slide")
	tenth := strings.Index(got, "tenth slide")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	require.GreaterOrEqual(t, tenth, 0)
	assert.Less(t, first, second)
	assert.Less(t, second, tenth)
}

func TestPptxNoSlides(t *testing.T) {
	data := buildZip(t, map[string]string{"ppt/presentation.xml": "<p/>"})
	got, err := Pptx(data)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestXlsx(t *testing.T) {
	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "qty"))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", "apples"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B2", 3))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	got, err := Xlsx(buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, got, "Sheet1")
	assert.Contains(t, got, "name\tqty")
	assert.Contains(t, got, "apples\t3")
}

func TestPlain(t *testing.T) {
	t.Run("strips BOM", func(t *testing.T) {
		got, err := Plain(append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...))
		require.NoError(t, err)
		assert.Equal(t, "hi", got)
	})

	t.Run("replaces invalid bytes", func(t *testing.T) {
		got, err := Plain([]byte{'h', 0xFF, 'i'})
		require.NoError(t, err)
		assert.Contains(t, got, "�")
		assert.Contains(t, got, "h")
	})
}

func TestTextDispatch(t *testing.T) {
	got, err := Text("notes.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = Text("movie.mp4", nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("report.PDF"))
	assert.True(t, Supported("deck.pptx"))
	assert.True(t, Supported("notes.md"))
	assert.False(t, Supported("binary.exe"))
	assert.False(t, Supported("noext"))
}
