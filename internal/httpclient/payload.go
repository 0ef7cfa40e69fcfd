package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxPayloadBytes bounds a body file read into memory.
const maxPayloadBytes = 8 << 20

// Payload is the request body every simulated user sends. It is read once
// so that repeated requests never touch the file system.
type Payload struct {
	data []byte
}

// LoadPayload returns the inline body, or the contents of bodyFile when
// body is empty. Setting both is an error.
func LoadPayload(body, bodyFile string) (Payload, error) {
	bodyFile = strings.TrimSpace(bodyFile)
	if body != "" && bodyFile != "" {
		return Payload{}, errors.New("body and body file cannot both be provided")
	}
	if body != "" {
		return Payload{data: []byte(body)}, nil
	}
	if bodyFile == "" {
		return Payload{}, nil
	}

	info, err := os.Stat(bodyFile)
	if err != nil {
		return Payload{}, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return Payload{}, fmt.Errorf("body file %q is a directory", bodyFile)
	}
	if info.Size() > maxPayloadBytes {
		return Payload{}, fmt.Errorf("body file %q exceeds %d bytes", bodyFile, maxPayloadBytes)
	}
	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return Payload{}, fmt.Errorf("body file: %w", err)
	}
	return Payload{data: data}, nil
}

// Len is the payload size in bytes.
func (p Payload) Len() int64 { return int64(len(p.data)) }

// Reader returns a fresh reader over the payload, or http.NoBody when empty.
func (p Payload) Reader() io.ReadCloser {
	if len(p.data) == 0 {
		return http.NoBody
	}
	return io.NopCloser(bytes.NewReader(p.data))
}
