package llm

import (
	"strings"

	"github.com/joseph-ayodele/financials-mapper/constants"
)

// SectionHeadings are the statements the model is told to search.
var SectionHeadings = []string{
	"Balance Sheet",
	"Profit and Loss Account",
	"Trading Account",
	"Trial Balance",
	"Income Statement",
}

// PromptInput carries the per-document knobs of the prompt.
type PromptInput struct {
	YearHint string
}

// BuildPrompt composes the extraction instruction: canonical fields with their
// synonyms, where to look, which year column to read and how to format the answer.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are reading an audited financial statement. The document is attached.\n")
	b.WriteString("Extract the following figures. Each line is: key | label | known aliases.\n\n")
	for _, k := range constants.CanonicalKeys() {
		b.WriteString("- ")
		b.WriteString(string(k))
		b.WriteString(" | ")
		b.WriteString(k.Label())
		b.WriteString(" | ")
		b.WriteString(strings.Join(k.Synonyms(), "; "))
		b.WriteString("\n")
	}

	b.WriteString("\nSearch these sections: ")
	b.WriteString(strings.Join(SectionHeadings, ", "))
	b.WriteString(". Figures may appear on any page.\n")

	if y := strings.TrimSpace(in.YearHint); y != "" {
		b.WriteString("Target financial year: ")
		b.WriteString(y)
		b.WriteString(". When the statement shows several years side by side, read only the column for this year.\n")
	} else {
		b.WriteString("When several years are shown side by side, read the most recent year.\n")
	}

	b.WriteString("\nFormatting rules:\n")
	b.WriteString("- Numbers only: remove thousands separators (1,23,456.00 becomes 123456.00).\n")
	b.WriteString("- A value in parentheses is negative: (5,000) becomes -5000.\n")
	b.WriteString("- Strip currency symbols and codes (₹, $, Rs, INR).\n")
	b.WriteString("- Omit a key you cannot find. Never guess and never output null.\n")
	b.WriteString("- Figures you saw but could not assign go to \"unmapped\" with their label as printed.\n")
	b.WriteString("- Return ONLY a JSON object, no prose and no code fences, shaped as:\n")
	b.WriteString(`{"mapped": {"<key>": <number>}, "unmapped": [{"rawLabel": "<label>", "rawValue": "<value>"}]}`)
	b.WriteString("\n")
	return b.String()
}
