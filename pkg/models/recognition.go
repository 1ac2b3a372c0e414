package models

import (
	"fmt"
)

// Outcome tags the result of one recognition request.
type Outcome int

const (
	OutcomeNotRecognized Outcome = iota
	OutcomeRecognized
	OutcomeExtractionFailed
	OutcomeNoReferenceData
)

var outcomeNames = map[Outcome]string{
	OutcomeNotRecognized:    "not_recognized",
	OutcomeRecognized:       "recognized",
	OutcomeExtractionFailed: "extraction_failed",
	OutcomeNoReferenceData:  "no_reference_data",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for k, v := range outcomeNames {
		if v == string(text) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// ReferenceRecord is a known track supplied to a recognition scan. It is
// treated as immutable for the duration of the scan.
type ReferenceRecord struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Artist string         `json:"artist"`
	Bundle *FeatureBundle `json:"bundle"`
}

// Fingerprint is the identity of a bundle. Equal hashes mean bit-identical
// numeric payloads and say nothing about perceptual similarity.
type Fingerprint struct {
	Hash   string        `json:"hash"`
	Bundle FeatureBundle `json:"bundle"`
}

// Candidate is one scored reference in a ranking.
type Candidate struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float64 `json:"similarity"`
}

// RecognitionResult is the decision for one query.
type RecognitionResult struct {
	Outcome    Outcome     `json:"outcome"`
	Recognized bool        `json:"recognized"`
	MatchedID  string      `json:"matched_id,omitempty"`
	Confidence float64     `json:"confidence"`
	Candidates []Candidate `json:"ranked_candidates"`
	Threshold  float64     `json:"threshold_used"`
	Skipped    int         `json:"skipped"`
	Reason     string      `json:"reason,omitempty"`
}

// Best returns the top-ranked candidate, if any.
func (r *RecognitionResult) Best() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}
