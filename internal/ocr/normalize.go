package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF      = regexp.MustCompile(`\r\n?`)
	reTrailWS   = regexp.MustCompile(`[ \t]+\n`)
	reManyBlank = regexp.MustCompile(`\n{3,}`)
	reFormFeed  = regexp.MustCompile(`\n?\f\n?`)
)

// Normalize cleans OCR output. Runs of spaces inside a line are kept since
// wide gaps separate labels from values.
func Normalize(s string) string {
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reFormFeed.ReplaceAllString(s, "\n\n")
	s = strings.ReplaceAll(s, "\t", "    ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = reTrailWS.ReplaceAllString(s, "\n")
	s = reManyBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
