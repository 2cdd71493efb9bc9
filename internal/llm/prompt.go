package llm

import (
	"strings"

	"github.com/cardwatch/agreements-tracker/constants"
)

// AgreementFieldNames are the exact keys the extraction service is asked to
// return. The normalizer maps them onto the record schema by these names, so
// the two must stay in sync.
var AgreementFieldNames = []string{
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
	"Rewards Structure",
	"Notable Exclusions",
	"Card type",
	"Institution type",
	"Change Description",
	"Change type",
	"Fee structure",
	"Rewards structure",
}

// BuildSystemPrompt returns the fixed system instruction for extraction runs.
func BuildSystemPrompt() string {
	return "You are a document parser."
}

// BuildUserPrompt composes the field-extraction instruction followed by the
// (truncated) agreement text.
func BuildUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from this credit card agreement:\n")
	for _, name := range AgreementFieldNames {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn only a JSON object. Use \"")
	b.WriteString(constants.NotDisclosed)
	b.WriteString("\" for missing fields.")
	b.WriteString("\n\n")
	b.WriteString(TruncateForPrompt(text))
	return b.String()
}

// TruncateForPrompt caps text at the per-call character budget to bound
// request cost and latency.
func TruncateForPrompt(text string) string {
	if len(text) > constants.MaxPromptChars {
		return text[:constants.MaxPromptChars]
	}
	return text
}
