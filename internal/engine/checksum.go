package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Checksum computes the content hash of a rulepack's rules and metadata:
// sha256 over the RFC 8785 canonical JSON form. It is a pure function of
// the two inputs — any content change yields a different digest, identical
// content always yields the same one regardless of map ordering.
func Checksum(rules RuleList, metadata Metadata) (string, error) {
	payload := struct {
		Rules    RuleList `json:"rules"`
		Metadata Metadata `json:"metadata"`
	}{Rules: rules, Metadata: metadata}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("checksum marshal: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("checksum canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
