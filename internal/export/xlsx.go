package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/locator-cli/internal/model"
)

// WriteDeliverableXLSX writes the deliverable rows as a single-sheet
// workbook for stakeholders who work in spreadsheets.
func WriteDeliverableXLSX(aggs []model.Aggregate, path string, fields []string) error {
	if len(fields) == 0 {
		fields = DefaultDeliverableFields
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create output dir for %s", path)
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Dealers")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, field := range fields {
		header.AddCell().SetString(field)
	}
	for _, row := range DeliverableRows(aggs, fields) {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save xlsx %s", path)
	}
	return nil
}
