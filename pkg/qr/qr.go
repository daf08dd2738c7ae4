// Package qr extracts item identifiers from scanned QR code text.
//
// Producers encode payloads inconsistently, so extraction tries, in order:
// a JSON object, a qr_code_id key-value pair, and finally any bare UUID.
package qr

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPayload means the scanned text carries no usable identifier.
// Callers should prompt for a rescan.
var ErrInvalidPayload = errors.New("invalid QR payload")

// Source names the rule that produced an identifier.
type Source string

const (
	SourceJSON     Source = "json"
	SourceKeyValue Source = "key_value"
	SourceBareUUID Source = "bare_uuid"
)

// jsonKeys are checked in order.
var jsonKeys = []string{"qr_code_id", "qr", "id"}

var (
	keyValuePattern = regexp.MustCompile(`(?i)qr_code_id["']?\s*[:=]\s*["']([0-9a-f-]{36})["']`)
	uuidPattern     = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`)
)

// Extract returns the item identifier embedded in raw.
func Extract(raw string) (string, error) {
	id, _, err := ExtractWithSource(raw)
	return id, err
}

// ExtractWithSource is Extract that also reports which rule matched.
func ExtractWithSource(raw string) (string, Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrInvalidPayload
	}

	if id, ok := fromJSON(raw); ok {
		return id, SourceJSON, nil
	}
	if m := keyValuePattern.FindStringSubmatch(raw); m != nil {
		if id, err := uuid.Parse(m[1]); err == nil {
			return id.String(), SourceKeyValue, nil
		}
	}
	if m := uuidPattern.FindString(raw); m != "" {
		return strings.ToLower(m), SourceBareUUID, nil
	}
	return "", "", ErrInvalidPayload
}

func fromJSON(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "{") {
		return "", false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return "", false
	}
	// Trailing garbage means this was not a strict JSON document.
	if dec.More() {
		return "", false
	}

	for _, key := range jsonKeys {
		switch v := obj[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}
