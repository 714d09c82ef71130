package frametime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compress encodes samples as a gzip compressed JSON array for storage.
func Compress(samples []float64) ([]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("frametime: encode archive: %w", err)
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return nil, fmt.Errorf("frametime: compress archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("frametime: compress archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Empty input yields no samples.
func Decompress(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frametime: open archive: %w", err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("frametime: read archive: %w", err)
	}
	var samples []float64
	if err := json.Unmarshal(payload, &samples); err != nil {
		return nil, fmt.Errorf("frametime: decode archive: %w", err)
	}
	return samples, nil
}
