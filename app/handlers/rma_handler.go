// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/ourican/rma-service/app/dto"
	businessflow "github.com/ourican/rma-service/business_flow"
	"github.com/ourican/rma-service/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RMAHandlerInterface defines the contract for RMA handlers
type RMAHandlerInterface interface {
	Submit(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Close(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Search(c fiber.Ctx) error
	Import(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// RMAHandler handles RMA ticket HTTP requests
type RMAHandler struct {
	flow      businessflow.RMAFlow
	ioFlow    businessflow.ImportExportFlow
	validator *validator.Validate
}

// NewRMAHandler creates a new RMA handler
func NewRMAHandler(flow businessflow.RMAFlow, ioFlow businessflow.ImportExportFlow) *RMAHandler {
	return &RMAHandler{
		flow:      flow,
		ioFlow:    ioFlow,
		validator: validator.New(),
	}
}

func (h *RMAHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RMAHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Submit creates a new RMA ticket and assigns the next sequential token
func (h *RMAHandler) Submit(c fiber.Ctx) error {
	var req dto.SubmitRMARequest
	if err := c.Bind().Body(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", h.validationDetails(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.Submit(h.createRequestContext(c, "/api/v1/rma"), &req, metadata)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "RMA_DUPLICATE_TOKEN":
				return h.ErrorResponse(c, fiber.StatusConflict, "Allocated token already exists", be.Code, nil)
			case "RMA_TOKEN_ALLOCATION_FAILED":
				return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Token allocation failed", be.Code, nil)
			}
		}
		if businessflow.IsStorageUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Storage temporarily unavailable", "RMA_STORAGE_UNAVAILABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to submit RMA request", "RMA_SUBMIT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// List returns all RMA tickets in insertion order
func (h *RMAHandler) List(c fiber.Ctx) error {
	result, err := h.flow.List(h.createRequestContext(c, "/api/v1/rma"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list RMA requests", "RMA_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Get returns the RMA ticket matching the token in the route
func (h *RMAHandler) Get(c fiber.Ctx) error {
	token := c.Params("token")

	result, err := h.flow.Get(h.createRequestContext(c, "/api/v1/rma/:token"), token)
	if err != nil {
		if businessflow.IsRMANotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "RMA request not found", "RMA_NOT_FOUND", nil)
		}
		if businessflow.IsTokenRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Token is required", "RMA_TOKEN_REQUIRED", nil)
		}
		if businessflow.IsStorageUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Storage temporarily unavailable", "RMA_STORAGE_UNAVAILABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve RMA request", "RMA_GET_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Update replaces all editable fields of the ticket matching the token
func (h *RMAHandler) Update(c fiber.Ctx) error {
	token := c.Params("token")

	var req dto.UpdateRMARequest
	if err := c.Bind().Body(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", h.validationDetails(err))
	}

	result, err := h.flow.Update(h.createRequestContext(c, "/api/v1/rma/:token"), token, &req)
	if err != nil {
		if businessflow.IsRMANotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "RMA request not found", "RMA_NOT_FOUND", nil)
		}
		if businessflow.IsTokenRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Token is required", "RMA_TOKEN_REQUIRED", nil)
		}
		if businessflow.IsStorageUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Storage temporarily unavailable", "RMA_STORAGE_UNAVAILABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update RMA request", "RMA_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Close marks the ticket Closed and queues the closure notification
func (h *RMAHandler) Close(c fiber.Ctx) error {
	token := c.Params("token")

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.flow.Close(h.createRequestContext(c, "/api/v1/rma/:token/close"), token, metadata)
	if err != nil {
		if businessflow.IsRMANotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "RMA request not found", "RMA_NOT_FOUND", nil)
		}
		if businessflow.IsTokenRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Token is required", "RMA_TOKEN_REQUIRED", nil)
		}
		if businessflow.IsStorageUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Storage temporarily unavailable", "RMA_STORAGE_UNAVAILABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to close RMA request", "RMA_CLOSE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Delete removes the ticket if present; deleting an absent token still succeeds
func (h *RMAHandler) Delete(c fiber.Ctx) error {
	token := c.Params("token")

	result, err := h.flow.Delete(h.createRequestContext(c, "/api/v1/rma/:token"), token)
	if err != nil {
		if businessflow.IsTokenRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Token is required", "RMA_TOKEN_REQUIRED", nil)
		}
		if businessflow.IsStorageUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Storage temporarily unavailable", "RMA_STORAGE_UNAVAILABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete RMA request", "RMA_DELETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Search matches tickets by one criterion: rma, device_serial_number, or client
func (h *RMAHandler) Search(c fiber.Ctx) error {
	var req dto.SearchRMARequest
	if err := c.Bind().Body(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", h.validationDetails(err))
	}

	result, err := h.flow.Search(h.createRequestContext(c, "/api/v1/rma/search"), &req)
	if err != nil {
		if businessflow.IsEmptySearchTerm(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Search term is required", "RMA_EMPTY_SEARCH_TERM", nil)
		}
		if businessflow.IsStorageUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Storage temporarily unavailable", "RMA_STORAGE_UNAVAILABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to search RMA requests", "RMA_SEARCH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Import bulk-loads tickets from an uploaded xlsx workbook
func (h *RMAHandler) Import(c fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "No file uploaded", "NO_FILE_UPLOADED", nil)
	}

	fileHeader := getFirstFile(form.File["excel_file"])
	if fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "No file uploaded", "NO_FILE_UPLOADED", nil)
	}

	data, err := readUploadedFile(fileHeader)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read uploaded file", "FILE_READ_FAILED", err.Error())
	}

	result, err := h.ioFlow.ImportWorkbook(h.createRequestContext(c, "/api/v1/rma/import"), data)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code == "RMA_IMPORT_PARSE_FAILED" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid workbook", be.Code, be.Error())
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import workbook", "RMA_IMPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Export streams every ticket as an xlsx download
func (h *RMAHandler) Export(c fiber.Ctx) error {
	filename, data, err := h.ioFlow.ExportWorkbook(h.createRequestContext(c, "/api/v1/rma/export"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export RMA requests", "RMA_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *RMAHandler) validationDetails(err error) []string {
	var details []string
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			details = append(details, getValidationErrorMessage(fieldError))
		}
	} else {
		details = append(details, err.Error())
	}
	return details
}

func (h *RMAHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, utils.DefaultRequestTimeout)
}

func (h *RMAHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}

func getFirstFile(files []*multipart.FileHeader) *multipart.FileHeader {
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func readUploadedFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
