package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Docx pulls the text runs out of word/document.xml. Word keeps one
// <w:t> per run and one <w:p> per paragraph.
func Docx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}
	entry := findZipEntry(zr, "word/document.xml")
	if entry == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}
	return readXMLText(entry)
}

// Pptx concatenates all slides in deck order. Slide XML uses the same
// run/paragraph shape as Word with the drawing namespace.
func Pptx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx failed: %w", err)
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	if len(slides) == 0 {
		return "", nil
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})

	var b strings.Builder
	for _, slide := range slides {
		text, err := readXMLText(slide)
		if err != nil {
			return "", fmt.Errorf("read slide %s failed: %w", slide.Name, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func findZipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func slideNumber(name string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}

func readXMLText(entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("open %s failed: %w", entry.Name, err)
	}
	defer rc.Close()
	return xmlText(rc)
}

// xmlText collects character data inside <t> elements and ends a
// paragraph on each closing <p>, which matches both the wordprocessing
// and drawing schemas.
func xmlText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml failed: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br", "tab":
				b.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
