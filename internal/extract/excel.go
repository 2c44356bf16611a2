package extract

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// extractExcel renders each sheet as tab-separated rows. Sheets are separated by
// a blank line; empty rows are skipped.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "open Excel workbook")
	}
	defer f.Close()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "read Excel sheet", rserr.Field("sheet", sheet))
		}
		var lines []string
		for _, row := range rows {
			if line := strings.TrimRight(strings.Join(row, "\t"), "\t"); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(sheets, "\n\n"), nil
}
