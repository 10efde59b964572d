// Package testing provides test utilities and database setup for testing the RMA service
package testing

import (
	"fmt"
	"math/rand"

	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// SeedTokenCounter creates the token counter at the given baseline
func (tf *TestFixtures) SeedTokenCounter(baseline int64) error {
	counter := &models.SequenceCounter{
		Name:      utils.TokenCounterName,
		LastValue: baseline,
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(counter).Error; err != nil {
		return fmt.Errorf("failed to seed token counter: %w", err)
	}
	return nil
}

// CreateTestRMARequest inserts an RMA request with a unique token and a few
// populated fields
func (tf *TestFixtures) CreateTestRMARequest() (*models.RMARequest, error) {
	serial := fmt.Sprintf("SN-%06d", rand.Intn(900000)+100000)
	row := &models.RMARequest{
		Token:              fmt.Sprintf("%s-%d", utils.DefaultTokenPrefix, rand.Intn(900000)+100000),
		Client:             utils.ToPtr("Test Client"),
		Product:            utils.ToPtr("PLC Controller"),
		DeviceSerialNumber: &serial,
		IssuesObserved:     utils.ToPtr("Device does not power on"),
		CustomerEmail:      utils.ToPtr(fmt.Sprintf("customer.%s@example.com", serial)),
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create test RMA request: %w", err)
	}
	return row, nil
}

// CreateTestRMARequestWithToken inserts an RMA request with an exact token
func (tf *TestFixtures) CreateTestRMARequestWithToken(token string) (*models.RMARequest, error) {
	row := &models.RMARequest{
		Token:          token,
		Client:         utils.ToPtr("Test Client"),
		IssuesObserved: utils.ToPtr("Intermittent communication fault"),
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create test RMA request %s: %w", token, err)
	}
	return row, nil
}
