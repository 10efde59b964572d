// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"sync"
	"testing"

	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/repository"
	testingutil "github.com/ourican/rma-service/testing"
	"github.com/ourican/rma-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSequenceRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("SeedCreatesCounter", func(t *testing.T) {
			err := repo.Seed(ctx, utils.TokenCounterName, 440)
			require.NoError(t, err)

			current, err := repo.Current(ctx, utils.TokenCounterName)
			require.NoError(t, err)
			assert.Equal(t, int64(440), current)
		})

		t.Run("SeedIsIdempotent", func(t *testing.T) {
			// Re-seeding with a different baseline never lowers the stored value
			err := repo.Seed(ctx, utils.TokenCounterName, 100)
			require.NoError(t, err)

			current, err := repo.Current(ctx, utils.TokenCounterName)
			require.NoError(t, err)
			assert.Equal(t, int64(440), current)
		})

		t.Run("NextIncrements", func(t *testing.T) {
			next, err := repo.Next(ctx, utils.TokenCounterName)
			require.NoError(t, err)
			assert.Equal(t, int64(441), next)

			next, err = repo.Next(ctx, utils.TokenCounterName)
			require.NoError(t, err)
			assert.Equal(t, int64(442), next)

			current, err := repo.Current(ctx, utils.TokenCounterName)
			require.NoError(t, err)
			assert.Equal(t, int64(442), current)
		})

		t.Run("NextUnknownCounter", func(t *testing.T) {
			_, err := repo.Next(ctx, "unknown_counter")
			assert.ErrorIs(t, err, repository.ErrCounterNotFound)
		})

		t.Run("CurrentUnknownCounter", func(t *testing.T) {
			_, err := repo.Current(ctx, "unknown_counter")
			assert.ErrorIs(t, err, repository.ErrCounterNotFound)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSequenceRepositoryConcurrency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewSequenceRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		require.NoError(t, repo.Seed(ctx, utils.TokenCounterName, 440))

		const workers = 25

		var mu sync.Mutex
		var wg sync.WaitGroup
		seen := make(map[int64]bool)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next, err := repo.Next(ctx, utils.TokenCounterName)
				assert.NoError(t, err)
				mu.Lock()
				seen[next] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		// Every caller observed a distinct value
		assert.Len(t, seen, workers)

		current, err := repo.Current(ctx, utils.TokenCounterName)
		require.NoError(t, err)
		assert.Equal(t, int64(440+workers), current)

		return nil
	})
	require.NoError(t, err)
}

func TestRMARequestRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewRMARequestRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAndByToken", func(t *testing.T) {
			row := &models.RMARequest{
				Token:              "MES-RMA-1001",
				Client:             utils.ToPtr("Acme Controls"),
				Product:            utils.ToPtr("PLC Controller"),
				DeviceSerialNumber: utils.ToPtr("SN-100001"),
				IssuesObserved:     utils.ToPtr("Relay output stuck"),
				CustomerEmail:      utils.ToPtr("ops@acme.example.com"),
			}
			require.NoError(t, repo.Save(ctx, row))
			assert.NotZero(t, row.ID)
			assert.Equal(t, utils.DeviceStatusOpen, row.DeviceStatus)

			got, err := repo.ByToken(ctx, "MES-RMA-1001")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "MES-RMA-1001", got.Token)
			assert.Equal(t, "Acme Controls", *got.Client)
			assert.Equal(t, "SN-100001", *got.DeviceSerialNumber)
			// Omitted optional fields stay NULL
			assert.Nil(t, got.Month)
			assert.Nil(t, got.Remark)
		})

		t.Run("SaveDuplicateToken", func(t *testing.T) {
			row := &models.RMARequest{Token: "MES-RMA-1001"}
			err := repo.Save(ctx, row)
			assert.ErrorIs(t, err, repository.ErrDuplicateToken)
		})

		t.Run("ByTokenNotFound", func(t *testing.T) {
			got, err := repo.ByToken(ctx, "MES-RMA-9999")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("ListInsertionOrder", func(t *testing.T) {
			first, err := fixtures.CreateTestRMARequestWithToken("MES-RMA-1002")
			require.NoError(t, err)
			second, err := fixtures.CreateTestRMARequestWithToken("MES-RMA-1003")
			require.NoError(t, err)

			rows, err := repo.List(ctx)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(rows), 3)

			// ids ascend across the whole listing
			for i := 1; i < len(rows); i++ {
				assert.Greater(t, rows[i].ID, rows[i-1].ID)
			}
			assert.Less(t, first.ID, second.ID)
		})

		t.Run("UpdateByToken", func(t *testing.T) {
			_, err := fixtures.CreateTestRMARequestWithToken("MES-RMA-1004")
			require.NoError(t, err)

			fields := models.RMAMutableFields{
				Client:         utils.ToPtr("New Client"),
				Solutions:      utils.ToPtr("Replaced output relay"),
				DeviceStatus:   utils.DeviceStatusOpen,
				IssuesObserved: nil,
			}
			affected, err := repo.UpdateByToken(ctx, "MES-RMA-1004", fields)
			require.NoError(t, err)
			assert.Equal(t, int64(1), affected)

			got, err := repo.ByToken(ctx, "MES-RMA-1004")
			require.NoError(t, err)
			require.NotNil(t, got)
			// Token survives every update
			assert.Equal(t, "MES-RMA-1004", got.Token)
			assert.Equal(t, "New Client", *got.Client)
			assert.Equal(t, "Replaced output relay", *got.Solutions)
			// Absent fields in the update clear the stored value
			assert.Nil(t, got.IssuesObserved)
		})

		t.Run("UpdateByTokenNotFound", func(t *testing.T) {
			affected, err := repo.UpdateByToken(ctx, "MES-RMA-9999", models.RMAMutableFields{})
			require.NoError(t, err)
			assert.Zero(t, affected)
		})

		t.Run("CloseByToken", func(t *testing.T) {
			row := &models.RMARequest{
				Token:              "MES-RMA-1005",
				CustomerEmail:      utils.ToPtr("close@example.com"),
				IssuesObserved:     utils.ToPtr("Cracked display"),
				DeviceSerialNumber: utils.ToPtr("SN-100005"),
			}
			require.NoError(t, repo.Save(ctx, row))

			details, err := repo.CloseByToken(ctx, "MES-RMA-1005")
			require.NoError(t, err)
			require.NotNil(t, details)
			assert.Equal(t, "MES-RMA-1005", details.Token)
			assert.Equal(t, "close@example.com", *details.CustomerEmail)
			assert.Equal(t, "Cracked display", *details.IssuesObserved)
			assert.Equal(t, "SN-100005", *details.DeviceSerialNumber)

			got, err := repo.ByToken(ctx, "MES-RMA-1005")
			require.NoError(t, err)
			assert.Equal(t, utils.DeviceStatusClosed, got.DeviceStatus)
		})

		t.Run("CloseByTokenNotFound", func(t *testing.T) {
			details, err := repo.CloseByToken(ctx, "MES-RMA-9999")
			require.NoError(t, err)
			assert.Nil(t, details)
		})

		t.Run("DeleteByTokenIdempotent", func(t *testing.T) {
			_, err := fixtures.CreateTestRMARequestWithToken("MES-RMA-1006")
			require.NoError(t, err)

			require.NoError(t, repo.DeleteByToken(ctx, "MES-RMA-1006"))

			got, err := repo.ByToken(ctx, "MES-RMA-1006")
			require.NoError(t, err)
			assert.Nil(t, got)

			// Deleting again still succeeds
			require.NoError(t, repo.DeleteByToken(ctx, "MES-RMA-1006"))
		})

		t.Run("ByFilterSearch", func(t *testing.T) {
			row := &models.RMARequest{
				Token:              "MES-RMA-1007",
				RMA:                utils.ToPtr("RMA-2026-17"),
				Client:             utils.ToPtr("Bharat Industrial Works"),
				DeviceSerialNumber: utils.ToPtr("SN-ALPHA-42"),
			}
			require.NoError(t, repo.Save(ctx, row))

			// Exact rma match
			rows, err := repo.ByFilter(ctx, models.RMARequestFilter{RMA: utils.ToPtr("RMA-2026-17")}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "MES-RMA-1007", rows[0].Token)

			// Partial rma value does not match exactly
			rows, err = repo.ByFilter(ctx, models.RMARequestFilter{RMA: utils.ToPtr("RMA-2026")}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, rows)

			// Substring serial match
			rows, err = repo.ByFilter(ctx, models.RMARequestFilter{DeviceSerialContains: utils.ToPtr("ALPHA")}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)

			// Substring client match
			rows, err = repo.ByFilter(ctx, models.RMARequestFilter{ClientContains: utils.ToPtr("Industrial")}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)

			// LIKE wildcards in the term are literal
			rows, err = repo.ByFilter(ctx, models.RMARequestFilter{ClientContains: utils.ToPtr("%")}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})

		t.Run("CountAndExists", func(t *testing.T) {
			count, err := repo.Count(ctx, models.RMARequestFilter{})
			require.NoError(t, err)
			assert.Greater(t, count, int64(0))

			exists, err := repo.Exists(ctx, models.RMARequestFilter{Token: utils.ToPtr("MES-RMA-1007")})
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = repo.Exists(ctx, models.RMARequestFilter{Token: utils.ToPtr("MES-RMA-9999")})
			require.NoError(t, err)
			assert.False(t, exists)
		})

		return nil
	})
	require.NoError(t, err)
}
