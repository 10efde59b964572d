package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ourican/rma-service/app/dto"
	"github.com/xuri/excelize/v2"
)

// RMAWorkbookCodec converts between xlsx workbooks and RMA row payloads.
// Column relabeling lives here, not in the store.
type RMAWorkbookCodec interface {
	ParseWorkbook(data []byte) ([]dto.ImportRow, error)
	BuildWorkbook(items []dto.RMAItem) ([]byte, error)
}

// exportColumns is the export header row, in sheet order. The serial number
// column carries the human label the reporting side expects; everything else
// keeps its field name.
var exportColumns = []string{
	"month",
	"date_of_issue",
	"project",
	"location",
	"client",
	"product",
	"Device Serial Number",
	"delivered_material_date",
	"issues_observed",
	"emd_observation",
	"solutions",
	"replacement_dc_no",
	"tested_by_engineer",
	"rma",
	"faulty_device_status",
	"remark",
	"device_status",
	"r1",
	"r2",
	"r3",
	"token",
	"customer_email",
}

// headerAliases maps normalized sheet headers to canonical field names, so
// workbooks exported by older deployments still import cleanly.
var headerAliases = map[string]string{
	"token_no":                   "token",
	"si_client":                  "client",
	"tested_by_messung_engineer": "tested_by_engineer",
	"device serial number":       "device_serial_number",
}

// RMAWorkbookCodecImpl implements RMAWorkbookCodec on excelize
type RMAWorkbookCodecImpl struct{}

func NewRMAWorkbookCodec() RMAWorkbookCodec {
	return &RMAWorkbookCodecImpl{}
}

// ParseWorkbook reads the first sheet of an xlsx workbook into import rows.
// The first row is the header; unknown columns are ignored.
func (c *RMAWorkbookCodecImpl) ParseWorkbook(data []byte) ([]dto.ImportRow, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rawRows, err := xl.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rawRows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	header := make([]string, len(rawRows[0]))
	for i, h := range rawRows[0] {
		header[i] = canonicalHeader(h)
	}

	rows := make([]dto.ImportRow, 0, len(rawRows)-1)
	for _, raw := range rawRows[1:] {
		cells := make(map[string]string, len(header))
		empty := true
		for i, col := range header {
			if col == "" || i >= len(raw) {
				continue
			}
			value := strings.TrimSpace(raw[i])
			if value != "" {
				empty = false
			}
			cells[col] = value
		}
		if empty {
			continue
		}
		rows = append(rows, rowFromCells(cells))
	}
	return rows, nil
}

// BuildWorkbook writes all items to a single-sheet workbook in the given
// order, with the relabeled header row first.
func (c *RMAWorkbookCodecImpl) BuildWorkbook(items []dto.RMAItem) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	if err := xl.SetSheetRow(sheet, "A1", &exportColumns); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for ri, item := range items {
		record := []any{
			deref(item.Month),
			deref(item.DateOfIssue),
			deref(item.Project),
			deref(item.Location),
			deref(item.Client),
			deref(item.Product),
			deref(item.DeviceSerialNumber),
			deref(item.DeliveredMaterialDate),
			deref(item.IssuesObserved),
			deref(item.EMDObservation),
			deref(item.Solutions),
			deref(item.ReplacementDCNo),
			deref(item.TestedByEngineer),
			deref(item.RMA),
			deref(item.FaultyDeviceStatus),
			deref(item.Remark),
			item.DeviceStatus,
			deref(item.R1),
			deref(item.R2),
			deref(item.R3),
			item.Token,
			deref(item.CustomerEmail),
		}
		cellRef, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", ri+2, err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func canonicalHeader(h string) string {
	normalized := strings.ToLower(strings.TrimSpace(h))
	if canonical, ok := headerAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

func rowFromCells(cells map[string]string) dto.ImportRow {
	row := dto.ImportRow{
		RMAFieldSet: dto.RMAFieldSet{
			Month:                 cells["month"],
			DateOfIssue:           cells["date_of_issue"],
			Project:               cells["project"],
			Location:              cells["location"],
			Client:                cells["client"],
			Product:               cells["product"],
			DeviceSerialNumber:    cells["device_serial_number"],
			DeliveredMaterialDate: cells["delivered_material_date"],
			IssuesObserved:        cells["issues_observed"],
			EMDObservation:        cells["emd_observation"],
			Solutions:             cells["solutions"],
			ReplacementDCNo:       cells["replacement_dc_no"],
			TestedByEngineer:      cells["tested_by_engineer"],
			RMA:                   cells["rma"],
			FaultyDeviceStatus:    cells["faulty_device_status"],
			Remark:                cells["remark"],
			DeviceStatus:          cells["device_status"],
			R1:                    cells["r1"],
			R2:                    cells["r2"],
			R3:                    cells["r3"],
			CustomerEmail:         cells["customer_email"],
		},
	}
	if token := strings.TrimSpace(cells["token"]); token != "" {
		row.Token = &token
	}
	return row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
