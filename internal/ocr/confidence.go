package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b(20\d{2}[-/.]\d{2}[-/.]\d{2})\b|\b\d{2}[-/.]\d{2}[-/.]20\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|chf|sek|dkk|nok)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}([.,]\d{3})*[.,]\d{2}\b`)
	reVAT    = regexp.MustCompile(`\b(vat|btw|tva|mwst|iban)\b`)
)

// heuristicConfidence estimates how invoice-like the decoded text is.
// Date-ish, currency-ish, amount-ish and tax-ish artifacts each add a bit.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2 // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reVAT.MatchString(txtL) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

var reNoise = regexp.MustCompile(`[ \t]+\n`)

// Normalize cleans up obvious OCR line noise.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reNoise.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
