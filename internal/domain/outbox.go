package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// OutboxItem is a queued capture record stored under a numeric key.
type OutboxItem struct {
	Key    int
	Data   string
	Expiry time.Time
}

type outboxEnvelope struct {
	Data   *string `json:"data"`
	Expiry int64   `json:"expiry,omitempty"`
}

// ParseOutboxKey reports whether key follows the queued capture record naming
// convention: a non-negative decimal integer in canonical form.
func ParseOutboxKey(key string) (int, bool) {
	if key == "" || strings.TrimSpace(key) != key {
		return 0, false
	}
	if len(key) > 1 && key[0] == '0' {
		return 0, false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, false
	}
	return n, true
}

func OutboxKey(n int) string {
	return strconv.Itoa(n)
}

// DecodeOutboxItem accepts either an envelope or any other value, which is then
// sent verbatim.
func DecodeOutboxItem(key int, raw string) OutboxItem {
	var envelope outboxEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Data != nil {
		item := OutboxItem{Key: key, Data: *envelope.Data}
		if envelope.Expiry > 0 {
			item.Expiry = time.UnixMilli(envelope.Expiry)
		}
		return item
	}

	return OutboxItem{Key: key, Data: raw}
}

func EncodeOutboxItem(item OutboxItem) (string, error) {
	envelope := outboxEnvelope{Data: &item.Data}
	if !item.Expiry.IsZero() {
		envelope.Expiry = item.Expiry.UnixMilli()
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// ExpiryOf extracts the expiry field of a stored JSON object. Values without
// one never expire.
func ExpiryOf(raw string) (time.Time, bool) {
	var probe struct {
		Expiry *json.Number `json:"expiry"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil || probe.Expiry == nil {
		return time.Time{}, false
	}
	millis, err := probe.Expiry.Int64()
	if err != nil {
		f, ferr := probe.Expiry.Float64()
		if ferr != nil {
			return time.Time{}, false
		}
		millis = int64(f)
	}
	if millis <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
