package entity

import "time"

// AgreementRecord is the durable output of one processed agreement document.
// Every extracted field is a display string; the normalizer guarantees a
// value (or the "Not disclosed" sentinel) for each one, so rows are never
// persisted with structured values in text columns.
type AgreementRecord struct {
	ID             int64  `json:"id"`
	Quarter        string `json:"quarter"`
	Year           int    `json:"year"`
	SourceFilename string `json:"source_filename"`

	Issuer             string `json:"issuer"`
	CardName           string `json:"card_name"`
	MinAPR             string `json:"min_apr"`
	MaxAPR             string `json:"max_apr"`
	PenaltyAPR         string `json:"penalty_apr"`
	AnnualFee          string `json:"annual_fee"`
	LateFee            string `json:"late_fee"`
	ForeignTxnFee      string `json:"foreign_txn_fee"`
	CashAdvanceFee     string `json:"cash_advance_fee"`
	BalanceTransferFee string `json:"balance_transfer_fee"`
	MinInterestCharge  string `json:"min_interest_charge"`
	Rewards            string `json:"rewards"`
	Exclusions         string `json:"exclusions"`
	CardType           string `json:"card_type"`
	InstitutionType    string `json:"institution_type"`
	ChangeDescription  string `json:"change_description"`
	ChangeType         string `json:"change_type"`
	FeeStructure       string `json:"fee_structure"`
	RewardsStructure   string `json:"rewards_structure"`

	ExtractionDate time.Time `json:"extraction_date"`
}
