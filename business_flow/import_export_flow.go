package businessflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ourican/rma-service/app/dto"
	"github.com/ourican/rma-service/app/services"
	"github.com/ourican/rma-service/models"
	"github.com/ourican/rma-service/repository"
	"github.com/ourican/rma-service/utils"
	"gorm.io/gorm"
)

// ImportExportFlow handles bulk workbook import and export of RMA tickets
type ImportExportFlow interface {
	ImportWorkbook(ctx context.Context, data []byte) (*dto.ImportRMAsResponse, error)
	ExportWorkbook(ctx context.Context) (string, []byte, error)
}

// ImportExportFlowImpl implements the bulk import/export business flow
type ImportExportFlowImpl struct {
	rmaRepo      repository.RMARequestRepository
	sequenceRepo repository.SequenceRepository
	codec        services.RMAWorkbookCodec
	tokenPrefix  string
	tokenSeed    int64
	db           *gorm.DB
}

// NewImportExportFlow creates a new import/export flow instance
func NewImportExportFlow(
	rmaRepo repository.RMARequestRepository,
	sequenceRepo repository.SequenceRepository,
	codec services.RMAWorkbookCodec,
	tokenPrefix string,
	tokenSeed int64,
	db *gorm.DB,
) ImportExportFlow {
	if tokenPrefix == "" {
		tokenPrefix = utils.DefaultTokenPrefix
	}
	return &ImportExportFlowImpl{
		rmaRepo:      rmaRepo,
		sequenceRepo: sequenceRepo,
		codec:        codec,
		tokenPrefix:  tokenPrefix,
		tokenSeed:    tokenSeed,
		db:           db,
	}
}

// ImportWorkbook inserts every parseable row of the workbook. Rows whose
// token already exists are skipped, rows that fail to insert are recorded,
// and neither aborts the batch or rolls back earlier rows. Each row commits
// in its own transaction so token allocation and insert stay atomic per row.
func (s *ImportExportFlowImpl) ImportWorkbook(ctx context.Context, data []byte) (*dto.ImportRMAsResponse, error) {
	rows, err := s.codec.ParseWorkbook(data)
	if err != nil {
		return nil, NewBusinessError("RMA_IMPORT_PARSE_FAILED", "Failed to parse workbook", err)
	}

	resp := &dto.ImportRMAsResponse{}
	for i, row := range rows {
		// Sheet row number, counting the header
		sheetRow := i + 2

		inserted, err := s.importRow(ctx, &row)
		switch {
		case err != nil:
			resp.Failed++
			resp.Failures = append(resp.Failures, dto.RowFailure{
				Row:    sheetRow,
				Reason: err.Error(),
			})
		case inserted:
			resp.Inserted++
		default:
			resp.Skipped++
		}
	}

	resp.Message = fmt.Sprintf("Import finished: %d inserted, %d skipped, %d failed", resp.Inserted, resp.Skipped, resp.Failed)
	return resp, nil
}

// importRow inserts one row, returning (false, nil) when the row was skipped
// because its token already exists.
func (s *ImportExportFlowImpl) importRow(ctx context.Context, row *dto.ImportRow) (bool, error) {
	if row.Token != nil {
		exists, err := s.rmaRepo.Exists(ctx, models.RMARequestFilter{Token: row.Token})
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	var skipped bool
	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		token := ""
		if row.Token != nil {
			token = *row.Token
		} else {
			minted, err := mintToken(txCtx, s.sequenceRepo, s.tokenPrefix, s.tokenSeed)
			if err != nil {
				return err
			}
			token = minted
		}

		record := newRMARequest(token, &row.RMAFieldSet)
		if record.RMA == nil {
			// Legacy sheets leave the rma column blank and expect the token
			record.RMA = &token
		}
		return s.rmaRepo.Save(txCtx, record)
	})
	if errors.Is(err, repository.ErrDuplicateToken) {
		// Lost a race with a concurrent insert of the same supplied token
		skipped = true
		err = nil
	}
	if err != nil {
		return false, err
	}
	return !skipped, nil
}

// ExportWorkbook renders every ticket, in store order, to an xlsx download.
func (s *ImportExportFlowImpl) ExportWorkbook(ctx context.Context) (string, []byte, error) {
	rows, err := s.rmaRepo.List(ctx)
	if err != nil {
		return "", nil, NewBusinessError("RMA_EXPORT_FAILED", "Failed to load RMA requests for export", err)
	}

	items := make([]dto.RMAItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toRMAItem(row))
	}

	data, err := s.codec.BuildWorkbook(items)
	if err != nil {
		return "", nil, NewBusinessError("RMA_EXPORT_WRITE_FAILED", "Failed to write workbook", err)
	}
	return "rma_export.xlsx", data, nil
}
