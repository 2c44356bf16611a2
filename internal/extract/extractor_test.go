package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\n\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Hello world\n\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainBOMAndInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("\xEF\xBB\xBFhello\x80world"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("raw"), ".xyz")
	if !rserr.HasCode(err, rserr.CodeInputUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if !rserr.IsMalformedInput(err) {
		t.Error("unsupported files are malformed input")
	}
}

func TestSupported(t *testing.T) {
	e := NewExtractor()
	for _, ext := range []string{".txt", ".PDF", ".docx", ".xlsx"} {
		if !e.Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	for _, ext := range []string{".pptx", ".go", ""} {
		if e.Supported(ext) {
			t.Errorf("Supported(%q) = true", ext)
		}
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	f.NewSheet("Notes")
	f.SetCellValue("Notes", "A1", "Remark")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2\n\nRemark" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_plainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func docxZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_docxParagraphs(t *testing.T) {
	body := `<w:document ` + wordNS + `><w:body>` +
		`<w:p w:rsidR="00AB"><w:r><w:t>First </w:t></w:r><w:r><w:t xml:space="preserve">paragraph</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`</w:body></w:document>`
	got, err := NewExtractor().ExtractBytes(docxZip(t, map[string]string{"word/document.xml": body}), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "First paragraph\n\nSecond\ttabbed" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	body := `<w:document ` + wordNS + `><w:body><w:p><w:r><w:t>From document2</w:t></w:r></w:p></w:body></w:document>`
	for name, override := range map[string]string{
		"part first": `<Override PartName="/word/document2.xml" ContentType="` + docxMainContentType + `"/>`,
		"type first": `<Override ContentType="` + docxMainContentType + `" PartName="/word/document2.xml"/>`,
	} {
		t.Run(name, func(t *testing.T) {
			content := docxZip(t, map[string]string{
				"[Content_Types].xml": `<Types>` + override + `</Types>`,
				"word/document2.xml":  body,
			})
			got, err := NewExtractor().ExtractBytes(content, ".docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != "From document2" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtractBytes_docxErrors(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("not a zip"), ".docx"); !rserr.IsMalformedInput(err) {
		t.Errorf("not a zip: got %v", err)
	}
	missing := docxZip(t, map[string]string{"other.xml": "<x/>"})
	if _, err := e.ExtractBytes(missing, ".docx"); !rserr.IsMalformedInput(err) {
		t.Errorf("missing body: got %v", err)
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-garbage"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}
