// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/MKhiriev/go-schema-sync/models"
)

// CalculateChecksum produces a deterministic content hash of a description.
//
// The description is round-tripped to generic JSON values, the
// generation-timestamp field is zeroed, and the result is re-marshaled —
// encoding/json emits map keys in sorted order, so the serialization is
// canonical. Two structurally equal descriptions hash identically regardless
// of key order or capture time. The receiver is never mutated.
func CalculateChecksum(schema *models.UIDescription) (string, error) {
	if schema == nil {
		return "", fmt.Errorf("%w: nil description", ErrSchemaValidation)
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("error marshaling description for checksum: %w", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("error normalizing description for checksum: %w", err)
	}

	// The capture timestamp must not influence the hash: re-generating the
	// same content a second later has to produce the same checksum.
	if meta, ok := generic["metadata"].(map[string]any); ok {
		meta["generatedAt"] = float64(0)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("error canonicalizing description for checksum: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum recomputes the checksum of schema and compares it with the
// advertised value, returning ErrChecksumMismatch on divergence.
func VerifyChecksum(schema *models.UIDescription, expected string) error {
	actual, err := CalculateChecksum(schema)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}
