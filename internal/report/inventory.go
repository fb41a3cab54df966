// =============================================================================
// NRML to HDF5 Converter - XLSX Inventory Report
// =============================================================================
//
// This module writes a spreadsheet inventory of a source model, one row per
// source, for review outside of the hazard tooling.
//
// WORKBOOK STRUCTURE:
//   Sheet "Sources":
//   | Group | Source ID | Name | Kind | Tectonic Region | MFD | Min Mag | Max Mag | Total Rate | Locations |
//
//   Sheet "Summary":
//   | Field | Value |   model name, NRML version, investigation time,
//                        group and source counts, sources per kind
//
// =============================================================================

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/nrml2hdf5/internal/sourcemodel"
	"github.com/ginjaninja78/nrml2hdf5/pkg/utils"
)

// Sheet names.
const (
	SourcesSheet = "Sources"
	SummarySheet = "Summary"
)

// sourceHeader is the header row of the Sources sheet.
var sourceHeader = []string{
	"Group", "Source ID", "Name", "Kind", "Tectonic Region",
	"MFD", "Min Mag", "Max Mag", "Total Rate", "Locations",
}

// Row is one line of the Sources sheet.
type Row struct {
	Group          string
	SourceID       string
	Name           string
	Kind           string
	TectonicRegion string
	MFD            string
	MinMag         float64
	MaxMag         float64
	TotalRate      float64
	Locations      int
}

// Rows builds the inventory rows of model in document order.
func Rows(model *sourcemodel.SourceModel) []Row {
	var rows []Row
	for _, group := range model.Groups {
		name := group.Name
		if name == "" {
			name = group.TectonicRegion
		}
		for _, src := range group.Sources {
			lo, hi := src.MFD.MagnitudeRange()
			rows = append(rows, Row{
				Group:          name,
				SourceID:       src.ID,
				Name:           src.Name,
				Kind:           string(src.Kind),
				TectonicRegion: src.TectonicRegion,
				MFD:            string(src.MFD.Kind),
				MinMag:         lo,
				MaxMag:         hi,
				TotalRate:      src.MFD.TotalRate(),
				Locations:      locations(src),
			})
		}
	}
	return rows
}

// locations counts the points a source is evaluated at.
func locations(src *sourcemodel.Source) int {
	g := src.Geometry
	switch src.Kind {
	case sourcemodel.KindArea:
		return len(g.Mesh)
	case sourcemodel.KindComplexFault:
		n := 0
		for _, edge := range g.Edges {
			n += len(edge)
		}
		return n
	}
	return len(g.Points)
}

// =============================================================================
// WRITING
// =============================================================================

// WriteInventory writes the inventory workbook of model to path.
//
// PARAMETERS:
//   - model: The source model to describe.
//   - path: The destination, which must have an .xlsx extension.
//
// RETURNS:
//   - An error if the workbook cannot be built or written. The destination
//     is only replaced once the workbook is complete.
func WriteInventory(model *sourcemodel.SourceModel, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return fmt.Errorf("report file %s must have an .xlsx extension", path)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SourcesSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeSources(f, Rows(model)); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeSummary(f, model); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	return utils.AtomicWrite(path, func(tmp string) error {
		out, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		if _, err := f.WriteTo(out); err != nil {
			out.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
		return out.Close()
	})
}

func writeSources(f *excelize.File, rows []Row) error {
	header := make([]interface{}, len(sourceHeader))
	for i, h := range sourceHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SourcesSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.Group, r.SourceID, r.Name, r.Kind, r.TectonicRegion,
			r.MFD, r.MinMag, r.MaxMag, r.TotalRate, r.Locations,
		}
		if err := f.SetSheetRow(SourcesSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(sourceHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SourcesSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return f.SetColWidth(SourcesSheet, "A", "J", 18)
}

func writeSummary(f *excelize.File, model *sourcemodel.SourceModel) error {
	stats := model.Stats()
	lines := [][]interface{}{
		{"Field", "Value"},
		{"Model", model.Name},
		{"NRML Version", model.NRMLVersion},
		{"Investigation Time", model.InvestigationTime},
		{"Area Source Discretization", model.Settings.AreaSourceDiscretization},
		{"MFD Bin Width", model.Settings.MFDBinWidth},
		{"Groups", stats.Groups},
		{"Sources", stats.Sources},
	}
	for _, kind := range sourcemodel.Kinds {
		lines = append(lines, []interface{}{string(kind), stats.ByKind[kind]})
	}

	for i := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &lines[i]); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "B", 28)
}

// =============================================================================
// READING
// =============================================================================

// ReadInventory reads the Sources sheet of a workbook written by
// WriteInventory.
func ReadInventory(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SourcesSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", SourcesSheet)
	}

	out := make([]Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		row, err := parseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func parseRow(cells []string) (Row, error) {
	get := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	number := func(i int) (float64, error) {
		if get(i) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(get(i), 64)
	}

	r := Row{
		Group: get(0), SourceID: get(1), Name: get(2), Kind: get(3),
		TectonicRegion: get(4), MFD: get(5),
	}
	var err error
	if r.MinMag, err = number(6); err != nil {
		return r, err
	}
	if r.MaxMag, err = number(7); err != nil {
		return r, err
	}
	if r.TotalRate, err = number(8); err != nil {
		return r, err
	}
	locs, err := number(9)
	if err != nil {
		return r, err
	}
	r.Locations = int(locs)
	return r, nil
}
