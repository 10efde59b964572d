package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/utils"
	"gorm.io/gorm"
)

// ErrDuplicateToken reports an insert with a token that already exists.
// It indicates allocator/store desync and is never retried automatically.
var ErrDuplicateToken = errors.New("token already exists")

// RMARequestRepositoryImpl implements RMARequestRepository interface
type RMARequestRepositoryImpl struct {
	*BaseRepository[models.RMARequest, models.RMARequestFilter]
}

// NewRMARequestRepository creates a new RMA request repository
func NewRMARequestRepository(db *gorm.DB) RMARequestRepository {
	return &RMARequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RMARequest, models.RMARequestFilter](db),
	}
}

// Save inserts a new RMA request. A unique-constraint violation on the token
// column is surfaced as ErrDuplicateToken; the uniqueness check is enforced
// by the database, not assumed from the allocator.
func (r *RMARequestRepositoryImpl) Save(ctx context.Context, row *models.RMARequest) error {
	err := r.BaseRepository.Save(ctx, row)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

// ByToken retrieves an RMA request by its token. Matching is exact and
// case-sensitive. Returns (nil, nil) when no record matches.
func (r *RMARequestRepositoryImpl) ByToken(ctx context.Context, token string) (*models.RMARequest, error) {
	db := r.getDB(ctx)
	var row models.RMARequest
	if err := db.Where("token = ?", token).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// List returns all RMA requests in insertion order.
func (r *RMARequestRepositoryImpl) List(ctx context.Context) ([]*models.RMARequest, error) {
	return r.ByFilter(ctx, models.RMARequestFilter{}, "id ASC", 0, 0)
}

// UpdateByToken replaces all mutable fields of the record matching token and
// reports the number of affected rows. Token and the primary key are not in
// the update set and can never change.
func (r *RMARequestRepositoryImpl) UpdateByToken(ctx context.Context, token string, fields models.RMAMutableFields) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	deviceStatus := fields.DeviceStatus
	if deviceStatus == "" {
		deviceStatus = utils.DeviceStatusOpen
	}

	res := db.Model(&models.RMARequest{}).
		Where("token = ?", token).
		Updates(map[string]any{
			"month":                   fields.Month,
			"date_of_issue":           fields.DateOfIssue,
			"project":                 fields.Project,
			"location":                fields.Location,
			"client":                  fields.Client,
			"product":                 fields.Product,
			"device_serial_number":    fields.DeviceSerialNumber,
			"delivered_material_date": fields.DeliveredMaterialDate,
			"issues_observed":         fields.IssuesObserved,
			"emd_observation":         fields.EMDObservation,
			"solutions":               fields.Solutions,
			"replacement_dc_no":       fields.ReplacementDCNo,
			"tested_by_engineer":      fields.TestedByEngineer,
			"rma":                     fields.RMA,
			"faulty_device_status":    fields.FaultyDeviceStatus,
			"remark":                  fields.Remark,
			"device_status":           deviceStatus,
			"r1":                      fields.R1,
			"r2":                      fields.R2,
			"r3":                      fields.R3,
			"customer_email":          fields.CustomerEmail,
			"updated_at":              utils.UTCNow(),
		})
	if res.Error != nil {
		err = res.Error
		return 0, err
	}
	return res.RowsAffected, nil
}

// CloseByToken atomically reads the record's notification fields and sets
// device_status to Closed, returning the fields captured before the flip.
// Returns (nil, nil) when no record matches.
func (r *RMARequestRepositoryImpl) CloseByToken(ctx context.Context, token string) (*models.ClosureDetails, error) {
	var details *models.ClosureDetails
	err := WithTransaction(ctx, r.DB.WithContext(ctx), func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		var row models.RMARequest
		if err := db.Clauses(forUpdateClause()).Where("token = ?", token).Last(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		details = &models.ClosureDetails{
			Token:              row.Token,
			CustomerEmail:      row.CustomerEmail,
			IssuesObserved:     row.IssuesObserved,
			DeviceSerialNumber: row.DeviceSerialNumber,
		}

		return db.Model(&models.RMARequest{}).
			Where("token = ?", token).
			Updates(map[string]any{
				"device_status": utils.DeviceStatusClosed,
				"updated_at":    utils.UTCNow(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// DeleteByToken removes the record if present; deleting an absent token is a
// no-op, so the operation is idempotent.
func (r *RMARequestRepositoryImpl) DeleteByToken(ctx context.Context, token string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Where("token = ?", token).Delete(&models.RMARequest{}).Error
	return err
}

// applyFilter applies filter criteria to a GORM query
func (r *RMARequestRepositoryImpl) applyFilter(query *gorm.DB, filter models.RMARequestFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Token != nil {
		query = query.Where("token = ?", *filter.Token)
	}
	if filter.RMA != nil {
		query = query.Where("rma = ?", *filter.RMA)
	}
	if filter.DeviceSerialContains != nil {
		query = query.Where("device_serial_number LIKE ?", "%"+escapeLike(*filter.DeviceSerialContains)+"%")
	}
	if filter.ClientContains != nil {
		query = query.Where("client LIKE ?", "%"+escapeLike(*filter.ClientContains)+"%")
	}
	if filter.DeviceStatus != nil {
		query = query.Where("device_status = ?", *filter.DeviceStatus)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves RMA requests based on filter criteria
func (r *RMARequestRepositoryImpl) ByFilter(ctx context.Context, filter models.RMARequestFilter, orderBy string, limit, offset int) ([]*models.RMARequest, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RMARequest{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.RMARequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of RMA requests matching filter
func (r *RMARequestRepositoryImpl) Count(ctx context.Context, filter models.RMARequestFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RMARequest{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any RMA request matches the filter
func (r *RMARequestRepositoryImpl) Exists(ctx context.Context, filter models.RMARequestFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func isUniqueViolation(err error) bool {
	// 23505 is Postgres unique_violation; the driver error text carries it
	return err != nil && strings.Contains(err.Error(), "23505")
}
