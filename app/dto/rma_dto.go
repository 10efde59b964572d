package dto

// RMAFieldSet carries the free-text fields shared by submit, update, and
// import payloads. Empty strings are treated as absent and stored as NULL.
type RMAFieldSet struct {
	Month                 string `json:"month,omitempty" form:"month"`
	DateOfIssue           string `json:"date_of_issue,omitempty" form:"date_of_issue"`
	Project               string `json:"project,omitempty" form:"project"`
	Location              string `json:"location,omitempty" form:"location"`
	Client                string `json:"client,omitempty" form:"client"`
	Product               string `json:"product,omitempty" form:"product"`
	DeviceSerialNumber    string `json:"device_serial_number,omitempty" form:"device_serial_number"`
	DeliveredMaterialDate string `json:"delivered_material_date,omitempty" form:"delivered_material_date"`
	IssuesObserved        string `json:"issues_observed,omitempty" form:"issues_observed"`
	EMDObservation        string `json:"emd_observation,omitempty" form:"emd_observation"`
	Solutions             string `json:"solutions,omitempty" form:"solutions"`
	ReplacementDCNo       string `json:"replacement_dc_no,omitempty" form:"replacement_dc_no"`
	TestedByEngineer      string `json:"tested_by_engineer,omitempty" form:"tested_by_engineer"`
	RMA                   string `json:"rma,omitempty" form:"rma"`
	FaultyDeviceStatus    string `json:"faulty_device_status,omitempty" form:"faulty_device_status"`
	Remark                string `json:"remark,omitempty" form:"remark"`
	DeviceStatus          string `json:"device_status,omitempty" form:"device_status"`
	R1                    string `json:"r1,omitempty" form:"r1"`
	R2                    string `json:"r2,omitempty" form:"r2"`
	R3                    string `json:"r3,omitempty" form:"r3"`
	CustomerEmail         string `json:"customer_email,omitempty" form:"customer_email" validate:"omitempty,email"`
}

// SubmitRMARequest carries data to open a new RMA ticket; the token is
// assigned by the allocator, never by the caller
type SubmitRMARequest struct {
	RMAFieldSet
}

// SubmitRMAResponse returns the created ticket and its assigned token
type SubmitRMAResponse struct {
	Message   string `json:"message"`
	ID        uint   `json:"id"`
	UUID      string `json:"uuid"`
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"`
	EmailSent bool   `json:"email_sent"`
}

// RMAItem represents an RMA ticket row in responses; nil means the field
// holds no value
type RMAItem struct {
	ID                    uint    `json:"id"`
	UUID                  string  `json:"uuid"`
	Token                 string  `json:"token"`
	Month                 *string `json:"month"`
	DateOfIssue           *string `json:"date_of_issue"`
	Project               *string `json:"project"`
	Location              *string `json:"location"`
	Client                *string `json:"client"`
	Product               *string `json:"product"`
	DeviceSerialNumber    *string `json:"device_serial_number"`
	DeliveredMaterialDate *string `json:"delivered_material_date"`
	IssuesObserved        *string `json:"issues_observed"`
	EMDObservation        *string `json:"emd_observation"`
	Solutions             *string `json:"solutions"`
	ReplacementDCNo       *string `json:"replacement_dc_no"`
	TestedByEngineer      *string `json:"tested_by_engineer"`
	RMA                   *string `json:"rma"`
	FaultyDeviceStatus    *string `json:"faulty_device_status"`
	Remark                *string `json:"remark"`
	DeviceStatus          string  `json:"device_status"`
	R1                    *string `json:"r1"`
	R2                    *string `json:"r2"`
	R3                    *string `json:"r3"`
	CustomerEmail         *string `json:"customer_email"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// GetRMAResponse returns a single ticket
type GetRMAResponse struct {
	Message string  `json:"message"`
	Item    RMAItem `json:"item"`
}

// ListRMAsResponse returns all tickets in insertion order. Degraded reads
// set Degraded so an empty list is distinguishable from zero records.
type ListRMAsResponse struct {
	Message  string    `json:"message"`
	Items    []RMAItem `json:"items"`
	Total    int       `json:"total"`
	Degraded bool      `json:"degraded,omitempty"`
}

// UpdateRMARequest replaces all mutable fields of the ticket matching the
// token in the route; the token itself is never updated
type UpdateRMARequest struct {
	RMAFieldSet
}

// UpdateRMAResponse confirms an update
type UpdateRMAResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// CloseRMAResponse returns the notification fields captured at closure
type CloseRMAResponse struct {
	Message            string  `json:"message"`
	Token              string  `json:"token"`
	DeviceStatus       string  `json:"device_status"`
	CustomerEmail      *string `json:"customer_email"`
	IssuesObserved     *string `json:"issues_observed"`
	DeviceSerialNumber *string `json:"device_serial_number"`
	EmailSent          bool    `json:"email_sent"`
}

// DeleteRMAResponse confirms a delete; deleting an absent token succeeds too
type DeleteRMAResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// SearchRMARequest selects exactly one criterion per call.
// SearchType "rma" matches exactly; "device_serial_number" and "client"
// match as substrings. Any other type yields an empty result set.
type SearchRMARequest struct {
	SearchType string `json:"search_type" form:"search_type"`
	SearchTerm string `json:"search_term" form:"search_term" validate:"required"`
}

// SearchRMAsResponse returns matching tickets in store order
type SearchRMAsResponse struct {
	Message string    `json:"message"`
	Items   []RMAItem `json:"items"`
}

// ImportRow is one parsed spreadsheet row. Token is nil when the sheet did
// not supply one; a token is then allocated during import.
type ImportRow struct {
	Token *string `json:"token,omitempty"`
	RMAFieldSet
}

// RowFailure records one import row that could not be inserted
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportRMAsResponse summarizes a bulk import. Rows whose token already
// existed are counted as skipped, not failed; earlier rows are never rolled
// back when a later row fails.
type ImportRMAsResponse struct {
	Message  string       `json:"message"`
	Inserted int          `json:"inserted"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Failures []RowFailure `json:"failures,omitempty"`
}
