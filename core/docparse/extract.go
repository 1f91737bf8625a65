package docparse

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrDocumentTooLarge  = errors.New("document content is too large")
)

// MaxDocxContentSize caps the decompressed size of word/document.xml.
var MaxDocxContentSize int64 = 32 << 20

// Supported file extensions.
var Extensions = []string{".txt", ".docx", ".pdf"}

// Extension returns the lower-cased extension of filename if it is supported.
func Extension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Extensions {
		if e == ext {
			return ext, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
}

// Document is the text content of an uploaded file.
type Document struct {
	Lines    []string
	Pages    int // pdf only
	Warnings []string
}

// Extract reads the text lines of a .txt, .docx or .pdf document.
func Extract(filename string, r io.ReaderAt, size int64) (Document, error) {
	ext, err := Extension(filename)
	if err != nil {
		return Document{}, err
	}
	switch ext {
	case ".docx":
		return extractDocx(r, size)
	case ".pdf":
		return extractPDF(r, size)
	default:
		return extractText(io.NewSectionReader(r, 0, size))
	}
}

func extractText(r io.Reader) (Document, error) {
	var doc Document
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		doc.Lines = append(doc.Lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return doc, errors.Wrap(sc.Err(), "reading text")
}

// extractDocx returns the text of each paragraph of word/document.xml, table cells included.
func extractDocx(r io.ReaderAt, size int64) (Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Document{}, errors.Wrap(err, "opening docx archive")
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return Document{}, errors.New("docx archive has no word/document.xml")
	}
	if body.UncompressedSize64 > uint64(MaxDocxContentSize) {
		return Document{}, ErrDocumentTooLarge
	}
	rc, err := body.Open()
	if err != nil {
		return Document{}, errors.Wrap(err, "opening word/document.xml")
	}
	defer rc.Close()
	// the size in the header may lie
	lr := &io.LimitedReader{R: rc, N: MaxDocxContentSize + 1}

	var (
		doc  Document
		para strings.Builder
		inT  bool
	)
	dec := xml.NewDecoder(lr)
	for {
		tok, err := dec.Token()
		if lr.N <= 0 {
			return Document{}, ErrDocumentTooLarge
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Document{}, errors.Wrap(err, "decoding word/document.xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inT = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				doc.Lines = append(doc.Lines, para.String())
				para.Reset()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inT = false
			case "p":
				doc.Lines = append(doc.Lines, para.String())
				para.Reset()
			}
		case xml.CharData:
			if inT {
				para.Write(t)
			}
		}
	}
	return doc, nil
}

func extractPDF(r io.ReaderAt, size int64) (doc Document, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("reading pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, errors.Wrap(err, "opening pdf")
	}
	doc.Pages = reader.NumPage()
	for i := 1; i <= doc.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("Failed to extract text from page %d: %v", i, err))
			continue
		}
		for _, row := range rows {
			var line bytes.Buffer
			for _, txt := range row.Content {
				line.WriteString(txt.S)
			}
			doc.Lines = append(doc.Lines, line.String())
		}
	}
	return doc, nil
}
