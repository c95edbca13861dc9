package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/handyman-tn/leadsync/internal/model"
)

// ScopeRecords pairs a scope with its normalized records for the workbook.
type ScopeRecords struct {
	Scope   model.Scope
	Records []model.Business
}

var sheetHeader = []string{
	"Name", "Address", "Phone", "Website",
	"City", "Service", "State", "Source URL",
	"Review Count", "Avg Rating",
}

// WriteWorkbook renders one audit workbook with a sheet per scope.
func WriteWorkbook(path string, scopes []ScopeRecords) error {
	if len(scopes) == 0 {
		return eris.New("export: no scopes to write")
	}

	file := xlsx.NewFile()
	titler := cases.Title(language.AmericanEnglish)

	for _, sr := range scopes {
		name := sheetName(titler, sr.Scope)
		sheet, err := file.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}

		header := sheet.AddRow()
		for _, h := range sheetHeader {
			header.AddCell().Value = h
		}

		for _, b := range sr.Records {
			row := sheet.AddRow()
			row.AddCell().Value = b.Name
			row.AddCell().Value = b.Address
			row.AddCell().Value = b.Phone
			row.AddCell().Value = b.Website
			row.AddCell().Value = b.City
			row.AddCell().Value = b.Service
			row.AddCell().Value = b.State
			row.AddCell().Value = b.SourceURL
			rc := row.AddCell()
			if b.ReviewCount != nil {
				rc.SetInt(*b.ReviewCount)
			}
			ar := row.AddCell()
			if b.AvgRating != nil {
				ar.SetFloat(*b.AvgRating)
			}
		}
	}

	return eris.Wrapf(file.Save(path), "export: save workbook %s", path)
}

// sheetName builds a human-readable sheet title, capped at the XLSX limit
// of 31 characters.
func sheetName(titler cases.Caser, scope model.Scope) string {
	name := titler.String(scope.City) + " " + titler.String(scope.Service)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
