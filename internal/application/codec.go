package application

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/bnema/taskwatch/internal/domain"
)

// EncodeMessage compacts a JSON payload, gzips it and returns it as standard
// base64, the form the ingest endpoint accepts in its data field.
func EncodeMessage(payload json.RawMessage) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return "", fmt.Errorf("%w: payload is not valid JSON: %v", domain.ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := writer.Write(compact.Bytes()); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("compress payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish compressed payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func DecodeMessage(encoded string) (json.RawMessage, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open compressed payload: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return json.RawMessage(payload), nil
}
