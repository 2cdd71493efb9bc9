package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cardwatch/agreements-tracker/internal/common"
	"github.com/cardwatch/agreements-tracker/internal/entity"
)

// Filter narrows listings to one batch tag. Zero values mean "any".
type Filter struct {
	Quarter string
	Year    int
}

// AgreementRepository is the persistence boundary the pipeline writes
// through. The write path is append-only; records are never mutated once
// saved.
type AgreementRepository interface {
	Save(ctx context.Context, rec *entity.AgreementRecord) error
	List(ctx context.Context, f Filter) ([]*entity.AgreementRecord, error)
}

// SQLRepository implements AgreementRepository over database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func NewSQLRepository(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRepository{db: db, dialect: dialect, logger: logger}
}

var agreementColumns = []string{
	"quarter", "year", "source_filename",
	"issuer", "card_name", "min_apr", "max_apr", "penalty_apr",
	"annual_fee", "late_fee", "foreign_txn_fee", "cash_advance_fee",
	"balance_transfer_fee", "min_interest_charge", "rewards", "exclusions",
	"card_type", "institution_type", "change_description", "change_type",
	"fee_structure", "rewards_structure", "extraction_date",
}

func (r *SQLRepository) Save(ctx context.Context, rec *entity.AgreementRecord) error {
	query := fmt.Sprintf(
		"INSERT INTO extracted_agreements (%s) VALUES (%s)",
		strings.Join(agreementColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(agreementColumns)), ", "),
	)
	_, err := r.db.ExecContext(ctx, rebind(r.dialect, query),
		rec.Quarter, rec.Year, rec.SourceFilename,
		rec.Issuer, rec.CardName, rec.MinAPR, rec.MaxAPR, rec.PenaltyAPR,
		rec.AnnualFee, rec.LateFee, rec.ForeignTxnFee, rec.CashAdvanceFee,
		rec.BalanceTransferFee, rec.MinInterestCharge, rec.Rewards, rec.Exclusions,
		rec.CardType, rec.InstitutionType, rec.ChangeDescription, rec.ChangeType,
		rec.FeeStructure, rec.RewardsStructure, rec.ExtractionDate,
	)
	if err != nil {
		return fmt.Errorf("%w: insert agreement for %s: %v", common.ErrStorage, rec.SourceFilename, err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, f Filter) ([]*entity.AgreementRecord, error) {
	query := "SELECT id, " + strings.Join(agreementColumns, ", ") + " FROM extracted_agreements"
	var (
		conds []string
		args  []any
	)
	if f.Quarter != "" {
		conds = append(conds, "quarter = ?")
		args = append(args, f.Quarter)
	}
	if f.Year != 0 {
		conds = append(conds, "year = ?")
		args = append(args, f.Year)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query agreements: %v", common.ErrStorage, err)
	}
	defer rows.Close()

	var recs []*entity.AgreementRecord
	for rows.Next() {
		var rec entity.AgreementRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Quarter, &rec.Year, &rec.SourceFilename,
			&rec.Issuer, &rec.CardName, &rec.MinAPR, &rec.MaxAPR, &rec.PenaltyAPR,
			&rec.AnnualFee, &rec.LateFee, &rec.ForeignTxnFee, &rec.CashAdvanceFee,
			&rec.BalanceTransferFee, &rec.MinInterestCharge, &rec.Rewards, &rec.Exclusions,
			&rec.CardType, &rec.InstitutionType, &rec.ChangeDescription, &rec.ChangeType,
			&rec.FeeStructure, &rec.RewardsStructure, &rec.ExtractionDate,
		); err != nil {
			return nil, fmt.Errorf("%w: scan agreement row: %v", common.ErrStorage, err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate agreement rows: %v", common.ErrStorage, err)
	}
	return recs, nil
}
