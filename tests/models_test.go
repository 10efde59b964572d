// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/google/uuid"
	"github.com/ourican/rma-service/models"
	testingutil "github.com/ourican/rma-service/testing"
	"github.com/ourican/rma-service/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRMARequestModel(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		t.Run("DefaultsOnCreate", func(t *testing.T) {
			row := &models.RMARequest{Token: "MES-RMA-501"}
			require.NoError(t, testDB.DB.Create(row).Error)

			assert.NotEqual(t, uuid.Nil, row.UUID)
			assert.Equal(t, utils.DeviceStatusOpen, row.DeviceStatus)
			assert.False(t, row.CreatedAt.IsZero())
			assert.False(t, row.UpdatedAt.IsZero())
		})

		t.Run("TokenUniqueness", func(t *testing.T) {
			row := &models.RMARequest{Token: "MES-RMA-502"}
			require.NoError(t, testDB.DB.Create(row).Error)

			dup := &models.RMARequest{Token: "MES-RMA-502"}
			assert.Error(t, testDB.DB.Create(dup).Error)
		})

		t.Run("OptionalFieldsNullable", func(t *testing.T) {
			row := &models.RMARequest{Token: "MES-RMA-503"}
			require.NoError(t, testDB.DB.Create(row).Error)

			var got models.RMARequest
			require.NoError(t, testDB.DB.Where("token = ?", "MES-RMA-503").Last(&got).Error)
			assert.Nil(t, got.Month)
			assert.Nil(t, got.Client)
			assert.Nil(t, got.CustomerEmail)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSequenceCounterModel(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		counter := &models.SequenceCounter{
			Name:      "test_counter",
			LastValue: 7,
			CreatedAt: utils.UTCNow(),
			UpdatedAt: utils.UTCNow(),
		}
		require.NoError(t, testDB.DB.Create(counter).Error)

		var got models.SequenceCounter
		require.NoError(t, testDB.DB.Where("name = ?", "test_counter").Last(&got).Error)
		assert.Equal(t, int64(7), got.LastValue)

		// Name is the natural key
		dup := &models.SequenceCounter{Name: "test_counter", LastValue: 1}
		assert.Error(t, testDB.DB.Create(dup).Error)

		return nil
	})
	require.NoError(t, err)
}
