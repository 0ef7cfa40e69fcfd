package httpclient

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPayload(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "student.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"registrationNumber":"21BCE0001"}`), 0o600))

	tests := []struct {
		name     string
		body     string
		bodyFile string
		want     string
		wantErr  bool
	}{
		{name: "empty", want: ""},
		{name: "inline", body: "hello", want: "hello"},
		{name: "file", bodyFile: " " + file + " ", want: `{"registrationNumber":"21BCE0001"}`},
		{name: "both", body: "x", bodyFile: file, wantErr: true},
		{name: "missing file", bodyFile: filepath.Join(dir, "absent.json"), wantErr: true},
		{name: "directory", bodyFile: dir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadPayload(tt.body, tt.bodyFile)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), p.Len())

			data, err := io.ReadAll(p.Reader())
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestPayloadReaderIsRepeatable(t *testing.T) {
	p, err := LoadPayload("abc", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		data, err := io.ReadAll(p.Reader())
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	}
}

func TestEmptyPayloadUsesNoBody(t *testing.T) {
	var p Payload
	assert.Equal(t, http.NoBody, p.Reader())
	assert.Zero(t, p.Len())
}

func TestLoadPayloadReadsFileOnce(t *testing.T) {
	file := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(file, []byte("first"), 0o600))

	p, err := LoadPayload("", file)
	require.NoError(t, err)
	require.NoError(t, os.Remove(file))

	data, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}
