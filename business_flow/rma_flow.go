// Package businessflow contains the core business logic and use cases for RMA ticket workflows
package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ourican/rma-service/app/dto"
	"github.com/ourican/rma-service/app/services"
	"github.com/ourican/rma-service/config"
	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/repository"
	"github.com/ourican/rma-service/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RMAFlow handles the complete RMA ticket business logic
type RMAFlow interface {
	Submit(ctx context.Context, req *dto.SubmitRMARequest, metadata *ClientMetadata) (*dto.SubmitRMAResponse, error)
	Get(ctx context.Context, token string) (*dto.GetRMAResponse, error)
	List(ctx context.Context) (*dto.ListRMAsResponse, error)
	Update(ctx context.Context, token string, req *dto.UpdateRMARequest) (*dto.UpdateRMAResponse, error)
	Close(ctx context.Context, token string, metadata *ClientMetadata) (*dto.CloseRMAResponse, error)
	Delete(ctx context.Context, token string) (*dto.DeleteRMAResponse, error)
	Search(ctx context.Context, req *dto.SearchRMARequest) (*dto.SearchRMAsResponse, error)
}

// RMAFlowImpl implements the RMA ticket business flow
type RMAFlowImpl struct {
	rmaRepo         repository.RMARequestRepository
	sequenceRepo    repository.SequenceRepository
	notificationSvc services.NotificationService
	rc              *redis.Client
	cacheConfig     *config.CacheConfig
	tokenPrefix     string
	tokenSeed       int64
	db              *gorm.DB
}

// NewRMAFlow creates a new RMA flow instance
func NewRMAFlow(
	rmaRepo repository.RMARequestRepository,
	sequenceRepo repository.SequenceRepository,
	notificationSvc services.NotificationService,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
	tokenPrefix string,
	tokenSeed int64,
	db *gorm.DB,
) RMAFlow {
	if tokenPrefix == "" {
		tokenPrefix = utils.DefaultTokenPrefix
	}
	return &RMAFlowImpl{
		rmaRepo:         rmaRepo,
		sequenceRepo:    sequenceRepo,
		notificationSvc: notificationSvc,
		rc:              rc,
		cacheConfig:     cacheConfig,
		tokenPrefix:     tokenPrefix,
		tokenSeed:       tokenSeed,
		db:              db,
	}
}

// Submit allocates the next token, inserts the ticket, and queues the
// "Opened" notification. Token allocation and insert share one transaction,
// so a failed insert never consumes a sequence value.
func (s *RMAFlowImpl) Submit(ctx context.Context, req *dto.SubmitRMARequest, metadata *ClientMetadata) (*dto.SubmitRMAResponse, error) {
	var row *models.RMARequest

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		token, err := mintToken(txCtx, s.sequenceRepo, s.tokenPrefix, s.tokenSeed)
		if err != nil {
			return err
		}

		row = newRMARequest(token, &req.RMAFieldSet)
		return s.rmaRepo.Save(txCtx, row)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateToken) {
			return nil, NewBusinessError("RMA_DUPLICATE_TOKEN", "Allocated token already exists", ErrDuplicateToken)
		}
		if errors.Is(err, repository.ErrCounterNotFound) {
			return nil, NewBusinessError("RMA_TOKEN_ALLOCATION_FAILED", "Failed to allocate token", ErrTokenAllocation)
		}
		if storageUnavailable(err) {
			return nil, NewBusinessError("RMA_STORAGE_UNAVAILABLE", "Storage temporarily unavailable", ErrStorageUnavailable)
		}
		return nil, NewBusinessError("RMA_SUBMIT_FAILED", "Failed to submit RMA request", err)
	}

	emailSent := s.queueNotification(row.Token, row.CustomerEmail, row.IssuesObserved, row.DeviceSerialNumber, services.RMAEventOpened)

	return &dto.SubmitRMAResponse{
		Message:   "RMA request submitted successfully",
		ID:        row.ID,
		UUID:      row.UUID.String(),
		Token:     row.Token,
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		EmailSent: emailSent,
	}, nil
}

// Get fetches a single ticket by token, reading through the cache when one
// is configured.
func (s *RMAFlowImpl) Get(ctx context.Context, token string) (*dto.GetRMAResponse, error) {
	if token == "" {
		return nil, NewBusinessError("RMA_TOKEN_REQUIRED", "Token is required", ErrTokenRequired)
	}

	if item, ok := s.cachedItem(ctx, token); ok {
		return &dto.GetRMAResponse{
			Message: "RMA request retrieved from cache",
			Item:    *item,
		}, nil
	}

	row, err := s.rmaRepo.ByToken(ctx, token)
	if err != nil {
		if storageUnavailable(err) {
			return nil, NewBusinessError("RMA_STORAGE_UNAVAILABLE", "Storage temporarily unavailable", ErrStorageUnavailable)
		}
		return nil, NewBusinessError("RMA_GET_FAILED", "Failed to retrieve RMA request", err)
	}
	if row == nil {
		return nil, NewBusinessError("RMA_NOT_FOUND", "RMA request not found", ErrRMANotFound)
	}

	item := toRMAItem(row)
	s.cacheItem(ctx, token, &item)

	return &dto.GetRMAResponse{
		Message: "RMA request retrieved successfully",
		Item:    item,
	}, nil
}

// List returns every ticket in insertion order. A storage failure degrades
// to an empty result with the Degraded flag set, so callers can tell it
// apart from zero records. Mutations never degrade this way.
func (s *RMAFlowImpl) List(ctx context.Context) (*dto.ListRMAsResponse, error) {
	rows, err := s.rmaRepo.List(ctx)
	if err != nil {
		log.Printf("Failed to list RMA requests, returning degraded response: %v", err)
		return &dto.ListRMAsResponse{
			Message:  "RMA requests temporarily unavailable",
			Items:    []dto.RMAItem{},
			Degraded: true,
		}, nil
	}

	items := make([]dto.RMAItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRMAItem(row))
	}

	return &dto.ListRMAsResponse{
		Message: "RMA requests retrieved successfully",
		Items:   items,
		Total:   len(items),
	}, nil
}

// Update replaces all mutable fields of the ticket matching token. The token
// itself never changes. Unknown tokens are an error, not a silent no-op.
func (s *RMAFlowImpl) Update(ctx context.Context, token string, req *dto.UpdateRMARequest) (*dto.UpdateRMAResponse, error) {
	if token == "" {
		return nil, NewBusinessError("RMA_TOKEN_REQUIRED", "Token is required", ErrTokenRequired)
	}

	affected, err := s.rmaRepo.UpdateByToken(ctx, token, mutableFields(&req.RMAFieldSet))
	if err != nil {
		if storageUnavailable(err) {
			return nil, NewBusinessError("RMA_STORAGE_UNAVAILABLE", "Storage temporarily unavailable", ErrStorageUnavailable)
		}
		return nil, NewBusinessError("RMA_UPDATE_FAILED", "Failed to update RMA request", err)
	}
	if affected == 0 {
		return nil, NewBusinessError("RMA_NOT_FOUND", "RMA request not found", ErrRMANotFound)
	}

	s.invalidateCache(ctx, token)

	return &dto.UpdateRMAResponse{
		Message: "RMA request updated successfully",
		Token:   token,
	}, nil
}

// Close flips the ticket's device status to Closed and queues the "Closed"
// notification built from the fields captured before the flip.
func (s *RMAFlowImpl) Close(ctx context.Context, token string, metadata *ClientMetadata) (*dto.CloseRMAResponse, error) {
	if token == "" {
		return nil, NewBusinessError("RMA_TOKEN_REQUIRED", "Token is required", ErrTokenRequired)
	}

	details, err := s.rmaRepo.CloseByToken(ctx, token)
	if err != nil {
		if storageUnavailable(err) {
			return nil, NewBusinessError("RMA_STORAGE_UNAVAILABLE", "Storage temporarily unavailable", ErrStorageUnavailable)
		}
		return nil, NewBusinessError("RMA_CLOSE_FAILED", "Failed to close RMA request", err)
	}
	if details == nil {
		return nil, NewBusinessError("RMA_NOT_FOUND", "RMA request not found", ErrRMANotFound)
	}

	s.invalidateCache(ctx, token)

	emailSent := s.queueNotification(details.Token, details.CustomerEmail, details.IssuesObserved, details.DeviceSerialNumber, services.RMAEventClosed)

	return &dto.CloseRMAResponse{
		Message:            "RMA request closed successfully",
		Token:              details.Token,
		DeviceStatus:       utils.DeviceStatusClosed,
		CustomerEmail:      details.CustomerEmail,
		IssuesObserved:     details.IssuesObserved,
		DeviceSerialNumber: details.DeviceSerialNumber,
		EmailSent:          emailSent,
	}, nil
}

// Delete removes the ticket if present. Deleting an absent token succeeds,
// so retried deletes are safe.
func (s *RMAFlowImpl) Delete(ctx context.Context, token string) (*dto.DeleteRMAResponse, error) {
	if token == "" {
		return nil, NewBusinessError("RMA_TOKEN_REQUIRED", "Token is required", ErrTokenRequired)
	}

	if err := s.rmaRepo.DeleteByToken(ctx, token); err != nil {
		if storageUnavailable(err) {
			return nil, NewBusinessError("RMA_STORAGE_UNAVAILABLE", "Storage temporarily unavailable", ErrStorageUnavailable)
		}
		return nil, NewBusinessError("RMA_DELETE_FAILED", "Failed to delete RMA request", err)
	}

	s.invalidateCache(ctx, token)

	return &dto.DeleteRMAResponse{
		Message: "RMA request deleted successfully",
		Token:   token,
	}, nil
}

// Search matches tickets by exactly one criterion. "rma" matches exactly,
// "device_serial_number" and "client" match as substrings. An unrecognized
// criterion returns an empty result set rather than an error.
func (s *RMAFlowImpl) Search(ctx context.Context, req *dto.SearchRMARequest) (*dto.SearchRMAsResponse, error) {
	term := req.SearchTerm
	if term == "" {
		return nil, NewBusinessError("RMA_EMPTY_SEARCH_TERM", "Search term is required", ErrEmptySearchTerm)
	}

	var filter models.RMARequestFilter
	switch req.SearchType {
	case "rma":
		filter.RMA = &term
	case "device_serial_number":
		filter.DeviceSerialContains = &term
	case "client":
		filter.ClientContains = &term
	default:
		return &dto.SearchRMAsResponse{
			Message: "No RMA requests matched",
			Items:   []dto.RMAItem{},
		}, nil
	}

	rows, err := s.rmaRepo.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		if storageUnavailable(err) {
			return nil, NewBusinessError("RMA_STORAGE_UNAVAILABLE", "Storage temporarily unavailable", ErrStorageUnavailable)
		}
		return nil, NewBusinessError("RMA_SEARCH_FAILED", "Failed to search RMA requests", err)
	}

	items := make([]dto.RMAItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRMAItem(row))
	}

	return &dto.SearchRMAsResponse{
		Message: "RMA requests retrieved successfully",
		Items:   items,
	}, nil
}

// storageUnavailable reports whether err is the backend being unreachable or
// out of time rather than a data-level failure. These are safe to retry.
func storageUnavailable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, gorm.ErrInvalidDB)
}

// mintToken draws the next sequence value and formats it as PREFIX-<n>.
// A missing counter is seeded to the configured baseline and retried once.
func mintToken(ctx context.Context, sequenceRepo repository.SequenceRepository, prefix string, seed int64) (string, error) {
	next, err := sequenceRepo.Next(ctx, utils.TokenCounterName)
	if errors.Is(err, repository.ErrCounterNotFound) {
		if seedErr := sequenceRepo.Seed(ctx, utils.TokenCounterName, seed); seedErr != nil {
			return "", seedErr
		}
		next, err = sequenceRepo.Next(ctx, utils.TokenCounterName)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", prefix, next), nil
}

// queueNotification dispatches the email outside the request path. Failures
// are logged and never affect the committed mutation. Returns whether a
// notification was queued at all.
func (s *RMAFlowImpl) queueNotification(token string, email, issues, serial *string, event services.RMAEvent) bool {
	if s.notificationSvc == nil || email == nil || *email == "" {
		return false
	}

	payload := services.RMANotification{
		Token:              token,
		CustomerEmail:      *email,
		IssuesObserved:     utils.Deref(issues),
		DeviceSerialNumber: utils.Deref(serial),
		Event:              event,
	}

	go func() {
		if err := s.notificationSvc.SendRMAEmail(payload); err != nil {
			log.Printf("Failed to send %s email for %s: %v", event, token, err)
		}
	}()
	return true
}

func (s *RMAFlowImpl) cacheEnabled() bool {
	return s.rc != nil && s.cacheConfig != nil && s.cacheConfig.Enabled
}

// cachedItem tries the cache first; any cache failure falls through to the store
func (s *RMAFlowImpl) cachedItem(ctx context.Context, token string) (*dto.RMAItem, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}
	bs, err := s.rc.Get(ctx, s.cacheKey(token)).Bytes()
	if err != nil || len(bs) == 0 {
		return nil, false
	}
	var item dto.RMAItem
	if err := json.Unmarshal(bs, &item); err != nil {
		return nil, false
	}
	return &item, true
}

func (s *RMAFlowImpl) cacheItem(ctx context.Context, token string, item *dto.RMAItem) {
	if !s.cacheEnabled() {
		return
	}
	if bs, err := json.Marshal(item); err == nil {
		_ = s.rc.Set(ctx, s.cacheKey(token), bs, s.cacheConfig.DefaultTTL).Err()
	}
}

func (s *RMAFlowImpl) invalidateCache(ctx context.Context, token string) {
	if !s.cacheEnabled() {
		return
	}
	_ = s.rc.Del(ctx, s.cacheKey(token)).Err()
}

func (s *RMAFlowImpl) cacheKey(token string) string {
	return redisKey(*s.cacheConfig, utils.RMATokenCacheKeyPrefix+token)
}

// redisKey namespaces a cache key with the configured prefix
func redisKey(cfg config.CacheConfig, suffix string) string {
	if cfg.RedisPrefix == "" {
		return suffix
	}
	return cfg.RedisPrefix + ":" + suffix
}

// newRMARequest builds a model row from the request fields. Empty strings
// and the legacy "None"/"nan" sentinels become NULL.
func newRMARequest(token string, fields *dto.RMAFieldSet) *models.RMARequest {
	deviceStatus := fields.DeviceStatus
	if deviceStatus == "" {
		deviceStatus = utils.DeviceStatusOpen
	}
	return &models.RMARequest{
		Token:                 token,
		Month:                 utils.NullableString(fields.Month),
		DateOfIssue:           utils.NullableString(fields.DateOfIssue),
		Project:               utils.NullableString(fields.Project),
		Location:              utils.NullableString(fields.Location),
		Client:                utils.NullableString(fields.Client),
		Product:               utils.NullableString(fields.Product),
		DeviceSerialNumber:    utils.NullableString(fields.DeviceSerialNumber),
		DeliveredMaterialDate: utils.NullableString(fields.DeliveredMaterialDate),
		IssuesObserved:        utils.NullableString(fields.IssuesObserved),
		EMDObservation:        utils.NullableString(fields.EMDObservation),
		Solutions:             utils.NullableString(fields.Solutions),
		ReplacementDCNo:       utils.NullableString(fields.ReplacementDCNo),
		TestedByEngineer:      utils.NullableString(fields.TestedByEngineer),
		RMA:                   utils.NullableString(fields.RMA),
		FaultyDeviceStatus:    utils.NullableString(fields.FaultyDeviceStatus),
		Remark:                utils.NullableString(fields.Remark),
		DeviceStatus:          deviceStatus,
		R1:                    utils.NullableString(fields.R1),
		R2:                    utils.NullableString(fields.R2),
		R3:                    utils.NullableString(fields.R3),
		CustomerEmail:         utils.NullableString(fields.CustomerEmail),
	}
}

// mutableFields converts request fields to the update column set
func mutableFields(fields *dto.RMAFieldSet) models.RMAMutableFields {
	return models.RMAMutableFields{
		Month:                 utils.NullableString(fields.Month),
		DateOfIssue:           utils.NullableString(fields.DateOfIssue),
		Project:               utils.NullableString(fields.Project),
		Location:              utils.NullableString(fields.Location),
		Client:                utils.NullableString(fields.Client),
		Product:               utils.NullableString(fields.Product),
		DeviceSerialNumber:    utils.NullableString(fields.DeviceSerialNumber),
		DeliveredMaterialDate: utils.NullableString(fields.DeliveredMaterialDate),
		IssuesObserved:        utils.NullableString(fields.IssuesObserved),
		EMDObservation:        utils.NullableString(fields.EMDObservation),
		Solutions:             utils.NullableString(fields.Solutions),
		ReplacementDCNo:       utils.NullableString(fields.ReplacementDCNo),
		TestedByEngineer:      utils.NullableString(fields.TestedByEngineer),
		RMA:                   utils.NullableString(fields.RMA),
		FaultyDeviceStatus:    utils.NullableString(fields.FaultyDeviceStatus),
		Remark:                utils.NullableString(fields.Remark),
		DeviceStatus:          fields.DeviceStatus,
		R1:                    utils.NullableString(fields.R1),
		R2:                    utils.NullableString(fields.R2),
		R3:                    utils.NullableString(fields.R3),
		CustomerEmail:         utils.NullableString(fields.CustomerEmail),
	}
}

// toRMAItem converts a model row to its response representation
func toRMAItem(row *models.RMARequest) dto.RMAItem {
	return dto.RMAItem{
		ID:                    row.ID,
		UUID:                  row.UUID.String(),
		Token:                 row.Token,
		Month:                 row.Month,
		DateOfIssue:           row.DateOfIssue,
		Project:               row.Project,
		Location:              row.Location,
		Client:                row.Client,
		Product:               row.Product,
		DeviceSerialNumber:    row.DeviceSerialNumber,
		DeliveredMaterialDate: row.DeliveredMaterialDate,
		IssuesObserved:        row.IssuesObserved,
		EMDObservation:        row.EMDObservation,
		Solutions:             row.Solutions,
		ReplacementDCNo:       row.ReplacementDCNo,
		TestedByEngineer:      row.TestedByEngineer,
		RMA:                   row.RMA,
		FaultyDeviceStatus:    row.FaultyDeviceStatus,
		Remark:                row.Remark,
		DeviceStatus:          row.DeviceStatus,
		R1:                    row.R1,
		R2:                    row.R2,
		R3:                    row.R3,
		CustomerEmail:         row.CustomerEmail,
		CreatedAt:             row.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             row.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
