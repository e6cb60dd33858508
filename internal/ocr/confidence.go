package ocr

import (
	"regexp"
	"strings"
)

var (
	reYear     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reCurrency = regexp.MustCompile(`(?i)(₹|\$|€|£|\brs\.?|\binr\b|\busd\b)`)
	reAmount   = regexp.MustCompile(`\d{1,3}(,\d{2,3})+(\.\d{2})?|\d+\.\d{2}`)
	reHeading  = regexp.MustCompile(`(?i)\b(balance sheet|profit and loss|statement of|income|assets|liabilities)\b`)
)

// heuristicConfidence scores OCR text by how much it looks like a financial statement.
func heuristicConfidence(s string) float64 {
	score := 0.0
	if reYear.FindStringIndex(s) != nil {
		score += 0.2
	}
	if reCurrency.FindStringIndex(s) != nil {
		score += 0.15
	}
	if n := len(reAmount.FindAllStringIndex(s, -1)); n > 0 {
		score += 0.25
		if n >= 5 {
			score += 0.1
		}
	}
	if reHeading.FindStringIndex(s) != nil {
		score += 0.2
	}
	if len(strings.TrimSpace(s)) > 200 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// blend mixes engine-reported confidence with the heuristic score.
func blend(engine, heuristic float64) float64 {
	if engine <= 0 {
		return heuristic
	}
	return 0.7*engine + 0.3*heuristic
}
