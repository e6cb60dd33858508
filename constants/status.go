package constants

// Grade is the coarse extraction confidence derived from how many canonical keys were populated.
type Grade string

// Stable values (serialized as-is).
const (
	GradeHigh   Grade = "high"
	GradeMedium Grade = "medium"
	GradeLow    Grade = "low"
)

const (
	highGradeMinKeys   = 8
	mediumGradeMinKeys = 5
)

// GradeFor maps a populated-key count onto a Grade.
func GradeFor(populated int) Grade {
	switch {
	case populated >= highGradeMinKeys:
		return GradeHigh
	case populated >= mediumGradeMinKeys:
		return GradeMedium
	default:
		return GradeLow
	}
}

// Strategy names recorded on results and extract jobs.
const (
	StrategyAI        = "ai"
	StrategyOCRParser = "ocr+parser"
	StrategySynonym   = "synonym"
	StrategyRawLines  = "raw-lines"
)
