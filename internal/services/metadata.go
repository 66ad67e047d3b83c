package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"market/internal/apperr"
	"market/internal/models"
)

// cardDataKeys are metadata keys that would carry raw card data.
var cardDataKeys = map[string]bool{
	"number":      true,
	"card_number": true,
	"cvv":         true,
	"cvc":         true,
	"exp":         true,
	"exp_month":   true,
	"exp_year":    true,
}

// DecodeMetadata turns raw payment metadata into a map. Multipart forms send
// the object as a JSON-encoded string, so one level of string quoting is
// unwrapped first. Empty input and null decode to an empty map.
func DecodeMetadata(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, apperr.InvalidMetadata(err)
		}
		return DecodeMetadata([]byte(inner))
	}
	if raw[0] != '{' {
		return nil, apperr.InvalidMetadata(fmt.Errorf("expected a JSON object, got %q", truncate(string(raw), 20)))
	}

	meta := map[string]any{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, apperr.InvalidMetadata(err)
	}
	return meta, nil
}

// CheckSensitiveData rejects card payments whose metadata carries card
// numbers, security codes or expiry dates. Keys are compared case-insensitively.
func CheckSensitiveData(method models.PaymentMethod, meta map[string]any) error {
	if method != models.MethodCard {
		return nil
	}
	var found []string
	for key := range meta {
		if cardDataKeys[strings.ToLower(strings.TrimSpace(key))] {
			found = append(found, key)
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Strings(found)
	return apperr.ForbiddenSensitiveData(found)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
