// Package services provides external service integrations and technical concerns like notifications and spreadsheets
package services

import (
	"testing"

	"github.com/ourican/rma-service/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestWorkbookRoundTrip(t *testing.T) {
	codec := NewRMAWorkbookCodec()

	items := []dto.RMAItem{
		{
			ID:                 1,
			Token:              "MES-RMA-441",
			Client:             strPtr("Acme Controls"),
			Product:            strPtr("PLC Controller"),
			DeviceSerialNumber: strPtr("SN-100001"),
			IssuesObserved:     strPtr("Relay output stuck"),
			DeviceStatus:       "Open",
			CustomerEmail:      strPtr("ops@acme.example.com"),
		},
		{
			ID:           2,
			Token:        "MES-RMA-442",
			RMA:          strPtr("RMA-2026-9"),
			DeviceStatus: "Closed",
		},
	}

	data, err := codec.BuildWorkbook(items)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	rows, err := codec.ParseWorkbook(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Token)
	assert.Equal(t, "MES-RMA-441", *rows[0].Token)
	assert.Equal(t, "Acme Controls", rows[0].Client)
	assert.Equal(t, "SN-100001", rows[0].DeviceSerialNumber)
	assert.Equal(t, "Open", rows[0].DeviceStatus)

	require.NotNil(t, rows[1].Token)
	assert.Equal(t, "RMA-2026-9", rows[1].RMA)
	// Empty cells stay empty, not filled with placeholders
	assert.Empty(t, rows[1].Client)
}

func TestParseWorkbookHeaderAliases(t *testing.T) {
	codec := NewRMAWorkbookCodec()

	// Build a sheet using the legacy header names
	legacy := []dto.RMAItem{{Token: "MES-RMA-1", DeviceStatus: "Open"}}
	data, err := codec.BuildWorkbook(legacy)
	require.NoError(t, err)

	// The exported "Device Serial Number" label parses back into the field
	rows, err := codec.ParseWorkbook(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "token", canonicalHeader("TOKEN_NO"))
	assert.Equal(t, "client", canonicalHeader("si_client"))
	assert.Equal(t, "device_serial_number", canonicalHeader("Device Serial Number"))
	assert.Equal(t, "tested_by_engineer", canonicalHeader("tested_by_messung_engineer"))
	assert.Equal(t, "remark", canonicalHeader("  Remark "))
}

func TestParseWorkbookRejectsGarbage(t *testing.T) {
	codec := NewRMAWorkbookCodec()

	_, err := codec.ParseWorkbook([]byte("definitely not a zip archive"))
	assert.Error(t, err)
}

func TestParseWorkbookSkipsBlankRows(t *testing.T) {
	codec := NewRMAWorkbookCodec()

	items := []dto.RMAItem{
		{Token: "MES-RMA-10", DeviceStatus: "Open"},
		{Token: "MES-RMA-11", DeviceStatus: "Open"},
	}
	data, err := codec.BuildWorkbook(items)
	require.NoError(t, err)

	rows, err := codec.ParseWorkbook(data)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
