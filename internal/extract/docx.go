package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const (
	docxDefaultBodyPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// mainPartRe matches the Override entry for the main document part in either attribute order.
var mainPartRe = regexp.MustCompile(
	`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"` +
		`|<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// extractDOCX returns the text of a .docx body with one line per paragraph and
// a blank line between paragraphs.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "open DOCX: not a zip archive")
	}
	bodyPath := docxDefaultBodyPath
	if ct, err := readZipFile(zr, contentTypesPath); err == nil {
		if m := mainPartRe.FindStringSubmatch(string(ct)); m != nil {
			bodyPath = strings.TrimPrefix(m[1]+m[2], "/")
		}
	}
	body, err := readZipFile(zr, bodyPath)
	if err != nil {
		return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "open DOCX body", rserr.Field("part", bodyPath))
	}
	return docxParagraphs(body)
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// docxParagraphs walks WordprocessingML and collects w:t runs per w:p.
func docxParagraphs(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "parse DOCX body")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		paragraphs = append(paragraphs, p)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
