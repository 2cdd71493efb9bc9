package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cardwatch/agreements-tracker/internal/repository"
)

// Service is a tiny façade over the repository that produces XLSX bytes for
// spreadsheet exports.
type Service struct {
	repo   repository.AgreementRepository
	logger *slog.Logger
}

func NewService(repo repository.AgreementRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Headers is the export column order, one column per record field.
var Headers = []string{
	"Quarter",
	"Year",
	"Source File",
	"Issuer",
	"Card Name",
	"Min APR (%)",
	"Max APR (%)",
	"Penalty APR (%)",
	"Annual Fee ($)",
	"Late Fee ($)",
	"Foreign Transaction Fee (%)",
	"Cash Advance Fee (%)",
	"Balance Transfer Fee (%)",
	"Minimum Interest Charge ($)",
	"Rewards",
	"Notable Exclusions",
	"Card Type",
	"Institution Type",
	"Change Description",
	"Change Type",
	"Fee Structure",
	"Rewards Structure",
	"Extraction Date",
}

// ExportAgreementsXLSX returns an XLSX workbook (as bytes) for the records
// matching the filter.
func (s *Service) ExportAgreementsXLSX(ctx context.Context, f repository.Filter) ([]byte, error) {
	start := time.Now()

	recs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query agreements: %w", err)
	}

	wb := excelize.NewFile()
	const sheet = "Agreements"
	if index, _ := wb.GetSheetIndex(sheet); index == -1 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := wb.GetSheetIndex(sheet)
	wb.SetActiveSheet(activeIndex)
	if defIndex, _ := wb.GetSheetIndex("Sheet1"); defIndex != -1 {
		_ = wb.DeleteSheet("Sheet1")
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	for rowIdx, r := range recs {
		values := []any{
			r.Quarter,
			r.Year,
			r.SourceFilename,
			r.Issuer,
			r.CardName,
			r.MinAPR,
			r.MaxAPR,
			r.PenaltyAPR,
			r.AnnualFee,
			r.LateFee,
			r.ForeignTxnFee,
			r.CashAdvanceFee,
			r.BalanceTransferFee,
			r.MinInterestCharge,
			r.Rewards,
			r.Exclusions,
			r.CardType,
			r.InstitutionType,
			r.ChangeDescription,
			r.ChangeType,
			r.FeeStructure,
			r.RewardsStructure,
			r.ExtractionDate.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			_ = wb.SetCellValue(sheet, cell, v)
		}
	}

	// Widen a few columns
	_ = wb.SetColWidth(sheet, "A", "B", 10)  // quarter, year
	_ = wb.SetColWidth(sheet, "C", "E", 28)  // filename, issuer, card
	_ = wb.SetColWidth(sheet, "F", "N", 16)  // rates and fees
	_ = wb.SetColWidth(sheet, "O", "V", 40)  // descriptive fields
	_ = wb.SetColWidth(sheet, "W", "W", 20)  // extraction date

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"quarter", f.Quarter,
		"year", f.Year,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
