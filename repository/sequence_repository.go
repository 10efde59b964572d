package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCounterNotFound reports an increment against a counter that was never seeded.
var ErrCounterNotFound = errors.New("sequence counter not found")

// SequenceRepositoryImpl implements SequenceRepository on top of a single
// sequence_counters row per counter name. The increment is a one-statement
// read-modify-write executed by the database, so concurrent callers can never
// observe the same pre-increment value, across goroutines or processes.
type SequenceRepositoryImpl struct {
	DB *gorm.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &SequenceRepositoryImpl{DB: db}
}

// Seed creates the counter with the given baseline if it does not exist yet.
// Seeding an existing counter is a no-op; the stored value is never lowered.
func (r *SequenceRepositoryImpl) Seed(ctx context.Context, name string, baseline int64) error {
	db := r.getDB(ctx)
	row := models.SequenceCounter{
		Name:      name,
		LastValue: baseline,
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to seed counter %q: %w", name, err)
	}
	return nil
}

// Next atomically increments the counter and returns the new value. On any
// failure no increment is committed, so the counter never skips or repeats.
func (r *SequenceRepositoryImpl) Next(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)

	var next int64
	res := db.Raw(
		`UPDATE sequence_counters SET last_value = last_value + 1, updated_at = ? WHERE name = ? RETURNING last_value`,
		utils.UTCNow(), name,
	).Scan(&next)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment counter %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrCounterNotFound
	}
	return next, nil
}

// Current returns the counter's last issued value without incrementing it.
func (r *SequenceRepositoryImpl) Current(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)
	var row models.SequenceCounter
	if err := db.Where("name = ?", name).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCounterNotFound
		}
		return 0, err
	}
	return row.LastValue, nil
}

// getDB returns the appropriate database connection (with or without transaction)
func (r *SequenceRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB.WithContext(ctx)
}

// forUpdateClause row-locks the selected record for the span of the
// enclosing transaction.
func forUpdateClause() clause.Expression {
	return clause.Locking{Strength: "UPDATE"}
}
