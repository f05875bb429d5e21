package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// compressMin is the encoded size above which snapshots are stored
// brotli-compressed. Small entries are not worth the cycles.
const compressMin = 1024

// Storage format markers, first byte of every encoded snapshot.
const (
	formatRaw    = 0x00
	formatBrotli = 0x01
)

// Snapshot is a stored copy of an upstream response: status, headers and
// the full body. Unlike a live *http.Response it can be returned to any
// number of callers.
type Snapshot struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body,omitempty"`
}

// NewSnapshot drains the response body and captures status, headers and
// body. The response body is consumed; serve the returned snapshot
// instead of the response afterwards.
func NewSnapshot(resp *http.Response) (*Snapshot, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Snapshot{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// Cacheable reports whether the snapshot may be stored. Only successful
// responses are ever cached.
func (s *Snapshot) Cacheable() bool {
	return s.Status >= 200 && s.Status < 300
}

// Clone returns a deep copy so callers can mutate headers freely.
func (s *Snapshot) Clone() *Snapshot {
	body := make([]byte, len(s.Body))
	copy(body, s.Body)
	return &Snapshot{
		Status: s.Status,
		Header: s.Header.Clone(),
		Body:   body,
	}
}

// Encode serializes the snapshot for backend storage. Payloads above
// compressMin are brotli-compressed; a one-byte marker records the format.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if len(data) <= compressMin {
		return append([]byte{formatRaw}, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(formatBrotli)
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	// Compression can lose on incompressible bodies; keep whichever is smaller.
	if buf.Len() >= len(data)+1 {
		return append([]byte{formatRaw}, data...), nil
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot data")
	}

	payload := data[1:]
	switch data[0] {
	case formatRaw:
	case formatBrotli:
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		payload = decompressed
	default:
		return nil, fmt.Errorf("unknown snapshot format marker: %#x", data[0])
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}
