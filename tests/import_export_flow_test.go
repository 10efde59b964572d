// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/ourican/rma-service/app/services"
	businessflow "github.com/ourican/rma-service/business_flow"
	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/repository"
	testingutil "github.com/ourican/rma-service/testing"
	"github.com/ourican/rma-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestImportExportFlow(testDB *testingutil.TestDB, seed int64) businessflow.ImportExportFlow {
	rmaRepo := repository.NewRMARequestRepository(testDB.DB)
	sequenceRepo := repository.NewSequenceRepository(testDB.DB)
	codec := services.NewRMAWorkbookCodec()
	return businessflow.NewImportExportFlow(rmaRepo, sequenceRepo, codec, utils.DefaultTokenPrefix, seed, testDB.DB)
}

// buildWorkbook creates an xlsx file with the given header and rows
func buildWorkbook(t *testing.T, header []string, rows [][]any) []byte {
	t.Helper()
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	require.NoError(t, xl.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, xl.SetSheetRow(sheet, cell, &row))
	}

	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportWorkbook(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newTestImportExportFlow(testDB, 440)
		repo := repository.NewRMARequestRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		// One token already present in the store
		_, err := fixtures.CreateTestRMARequestWithToken("MES-RMA-300")
		require.NoError(t, err)

		data := buildWorkbook(t,
			[]string{"token", "client", "device_serial_number", "issues_observed"},
			[][]any{
				{"MES-RMA-301", "Client A", "SN-A", "Broken case"},
				{"MES-RMA-300", "Client B", "SN-B", "Duplicate row"},
				{"", "Client C", "SN-C", "Needs a minted token"},
			},
		)

		resp, err := flow.ImportWorkbook(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Inserted)
		assert.Equal(t, 1, resp.Skipped)
		assert.Equal(t, 0, resp.Failed)
		assert.Empty(t, resp.Failures)

		count, err := repo.Count(ctx, models.RMARequestFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		// The tokenless row drew from the seeded counter
		minted, err := repo.ByToken(ctx, "MES-RMA-441")
		require.NoError(t, err)
		require.NotNil(t, minted)
		assert.Equal(t, "Client C", *minted.Client)

		// The skipped row never touched the existing record
		existing, err := repo.ByToken(ctx, "MES-RMA-300")
		require.NoError(t, err)
		assert.Equal(t, "Test Client", *existing.Client)

		return nil
	})
	require.NoError(t, err)
}

func TestImportWorkbookLegacyHeaders(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestImportExportFlow(testDB, 440)
		repo := repository.NewRMARequestRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		// Headers as written by older deployments
		data := buildWorkbook(t,
			[]string{"token_no", "si_client", "Device Serial Number", "tested_by_messung_engineer"},
			[][]any{
				{"MES-RMA-310", "Legacy Client", "SN-LEGACY", "R. Kulkarni"},
			},
		)

		resp, err := flow.ImportWorkbook(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Inserted)

		got, err := repo.ByToken(ctx, "MES-RMA-310")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Legacy Client", *got.Client)
		assert.Equal(t, "SN-LEGACY", *got.DeviceSerialNumber)
		assert.Equal(t, "R. Kulkarni", *got.TestedByEngineer)
		// Blank rma column defaults to the row token
		assert.Equal(t, "MES-RMA-310", *got.RMA)

		return nil
	})
	require.NoError(t, err)
}

func TestImportWorkbookInvalidPayload(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newTestImportExportFlow(testDB, 440)
		ctx := testingutil.CreateTestContext()

		_, err := flow.ImportWorkbook(ctx, []byte("not an xlsx file"))
		require.Error(t, err)
		be, ok := err.(*businessflow.BusinessError)
		require.True(t, ok)
		assert.Equal(t, "RMA_IMPORT_PARSE_FAILED", be.Code)

		return nil
	})
	require.NoError(t, err)
}

func TestExportWorkbook(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newTestImportExportFlow(testDB, 440)
		ctx := testingutil.CreateTestContext()

		first, err := fixtures.CreateTestRMARequest()
		require.NoError(t, err)
		second, err := fixtures.CreateTestRMARequest()
		require.NoError(t, err)

		filename, data, err := flow.ExportWorkbook(ctx)
		require.NoError(t, err)
		assert.Equal(t, "rma_export.xlsx", filename)
		require.NotEmpty(t, data)

		// Parse the produced workbook back and verify order and relabeling
		codec := services.NewRMAWorkbookCodec()
		rows, err := codec.ParseWorkbook(data)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.NotNil(t, rows[0].Token)
		assert.Equal(t, first.Token, *rows[0].Token)
		assert.Equal(t, second.Token, *rows[1].Token)
		assert.Equal(t, *first.DeviceSerialNumber, rows[0].DeviceSerialNumber)

		return nil
	})
	require.NoError(t, err)
}
