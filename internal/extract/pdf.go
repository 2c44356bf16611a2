package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// extractPDF returns the plain text of every page. Pages are separated by a
// blank line so each page starts a new paragraph for the splitter.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "open PDF")
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "extract PDF page", rserr.Field("page", i))
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
