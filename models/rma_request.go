package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ourican/rma-service/utils"
	"gorm.io/gorm"
)

// RMARequest represents one Return Merchandise Authorization service ticket
// Table: rma_requests
// Token is the unique, sequentially assigned identifier (PREFIX-<n>) and is
// immutable once issued; RMA is a free-text field distinct from Token.
// All optional fields are nullable — absent values are stored as NULL.
// Timestamps default to UTC at DB level
type RMARequest struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	Month                 *string `gorm:"type:text" json:"month,omitempty"`
	DateOfIssue           *string `gorm:"type:text" json:"date_of_issue,omitempty"`
	Project               *string `gorm:"type:text" json:"project,omitempty"`
	Location              *string `gorm:"type:text" json:"location,omitempty"`
	Client                *string `gorm:"type:text;index" json:"client,omitempty"`
	Product               *string `gorm:"type:text" json:"product,omitempty"`
	DeviceSerialNumber    *string `gorm:"type:text;index" json:"device_serial_number,omitempty"`
	DeliveredMaterialDate *string `gorm:"type:text" json:"delivered_material_date,omitempty"`
	IssuesObserved        *string `gorm:"type:text" json:"issues_observed,omitempty"`
	EMDObservation        *string `gorm:"column:emd_observation;type:text" json:"emd_observation,omitempty"`
	Solutions             *string `gorm:"type:text" json:"solutions,omitempty"`
	ReplacementDCNo       *string `gorm:"column:replacement_dc_no;type:text" json:"replacement_dc_no,omitempty"`
	TestedByEngineer      *string `gorm:"type:text" json:"tested_by_engineer,omitempty"`
	RMA                   *string `gorm:"column:rma;type:text;index" json:"rma,omitempty"`
	FaultyDeviceStatus    *string `gorm:"type:text" json:"faulty_device_status,omitempty"`
	Remark                *string `gorm:"type:text" json:"remark,omitempty"`
	DeviceStatus          string  `gorm:"type:varchar(32);not null;default:'Open'" json:"device_status"`
	R1                    *string `gorm:"type:text" json:"r1,omitempty"`
	R2                    *string `gorm:"type:text" json:"r2,omitempty"`
	R3                    *string `gorm:"type:text" json:"r3,omitempty"`
	Token                 string  `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	CustomerEmail         *string `gorm:"type:text" json:"customer_email,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RMARequest) TableName() string { return "rma_requests" }

// BeforeCreate ensures UUID, status, and timestamps are set
func (r *RMARequest) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.DeviceStatus == "" {
		r.DeviceStatus = utils.DeviceStatusOpen
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = utils.UTCNow()
	}
	return nil
}

// RMARequestFilter represents filter criteria for RMA request queries
type RMARequestFilter struct {
	ID                   *uint      `json:"id,omitempty"`
	Token                *string    `json:"token,omitempty"`
	RMA                  *string    `json:"rma,omitempty"`
	DeviceSerialContains *string    `json:"device_serial_contains,omitempty"`
	ClientContains       *string    `json:"client_contains,omitempty"`
	DeviceStatus         *string    `json:"device_status,omitempty"`
	CreatedAfter         *time.Time `json:"created_after,omitempty"`
	CreatedBefore        *time.Time `json:"created_before,omitempty"`
}

// RMAMutableFields is the set of fields replaced by an update. Token and
// the primary key are deliberately absent.
type RMAMutableFields struct {
	Month                 *string
	DateOfIssue           *string
	Project               *string
	Location              *string
	Client                *string
	Product               *string
	DeviceSerialNumber    *string
	DeliveredMaterialDate *string
	IssuesObserved        *string
	EMDObservation        *string
	Solutions             *string
	ReplacementDCNo       *string
	TestedByEngineer      *string
	RMA                   *string
	FaultyDeviceStatus    *string
	Remark                *string
	DeviceStatus          string
	R1                    *string
	R2                    *string
	R3                    *string
	CustomerEmail         *string
}

// ClosureDetails carries the notification fields captured at the moment a
// ticket is closed.
type ClosureDetails struct {
	Token              string
	CustomerEmail      *string
	IssuesObserved     *string
	DeviceSerialNumber *string
}
