package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cardwatch/agreements-tracker/constants"
	"github.com/cardwatch/agreements-tracker/internal/entity"
	"github.com/cardwatch/agreements-tracker/internal/llm"
)

// Kind tags the shape of a raw extracted value before flattening. Making the
// variants explicit keeps the join/serialize/default rules exhaustive instead
// of leaning on truthiness.
type Kind int

const (
	KindMissing Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

// RawValue is one extracted field in tagged form.
type RawValue struct {
	Kind    Kind
	Scalar  string
	Seq     []string
	Mapping map[string]any
}

// Classify converts a decoded JSON value into its tagged form. Absent, null,
// and empty values all collapse into KindMissing.
func Classify(v any) RawValue {
	switch t := v.(type) {
	case nil:
		return RawValue{Kind: KindMissing}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return RawValue{Kind: KindMissing}
		}
		return RawValue{Kind: KindScalar, Scalar: s}
	case bool:
		return RawValue{Kind: KindScalar, Scalar: strconv.FormatBool(t)}
	case float64:
		return RawValue{Kind: KindScalar, Scalar: formatNumber(t)}
	case json.Number:
		return RawValue{Kind: KindScalar, Scalar: t.String()}
	case []any:
		if len(t) == 0 {
			return RawValue{Kind: KindMissing}
		}
		seq := make([]string, 0, len(t))
		for _, el := range t {
			seq = append(seq, Classify(el).Display())
		}
		return RawValue{Kind: KindSequence, Seq: seq}
	case map[string]any:
		if len(t) == 0 {
			return RawValue{Kind: KindMissing}
		}
		return RawValue{Kind: KindMapping, Mapping: t}
	default:
		return RawValue{Kind: KindScalar, Scalar: fmt.Sprintf("%v", t)}
	}
}

// Display flattens a tagged value into the single string stored on the
// record: sequences join with "; ", mappings serialize to compact JSON, and
// missing values become the sentinel.
func (r RawValue) Display() string {
	switch r.Kind {
	case KindScalar:
		return r.Scalar
	case KindSequence:
		return strings.Join(r.Seq, "; ")
	case KindMapping:
		b, err := json.Marshal(r.Mapping)
		if err != nil {
			return constants.NotDisclosed
		}
		return string(b)
	default:
		return constants.NotDisclosed
	}
}

// Field normalizes one named field out of the raw mapping.
func Field(fields llm.FieldMap, name string) string {
	return Classify(fields[name]).Display()
}

// Record builds a fully populated AgreementRecord from a raw field mapping.
// It is pure and total: any input, including an empty map, yields a record
// where every field is a plain string.
func Record(fields llm.FieldMap, quarter string, year int, sourceFilename string, now time.Time) *entity.AgreementRecord {
	return &entity.AgreementRecord{
		Quarter:        quarter,
		Year:           year,
		SourceFilename: sourceFilename,

		Issuer:             Field(fields, "Issuer"),
		CardName:           Field(fields, "Card Name"),
		MinAPR:             Field(fields, "Min APR (%)"),
		MaxAPR:             Field(fields, "Max APR (%)"),
		PenaltyAPR:         Field(fields, "Penalty APR (%)"),
		AnnualFee:          Field(fields, "Annual Fee ($)"),
		LateFee:            Field(fields, "Late Fee ($)"),
		ForeignTxnFee:      Field(fields, "Foreign Transaction Fee (%)"),
		CashAdvanceFee:     Field(fields, "Cash Advance Fee (%)"),
		BalanceTransferFee: Field(fields, "Balance Transfer Fee (%)"),
		MinInterestCharge:  Field(fields, "Minimum Interest Charge ($)"),
		Rewards:            Field(fields, "Rewards Structure"),
		Exclusions:         Field(fields, "Notable Exclusions"),
		CardType:           Field(fields, "Card type"),
		InstitutionType:    Field(fields, "Institution type"),
		ChangeDescription:  Field(fields, "Change Description"),
		ChangeType:         Field(fields, "Change type"),
		FeeStructure:       Field(fields, "Fee structure"),
		RewardsStructure:   Field(fields, "Rewards structure"),

		ExtractionDate: now,
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
