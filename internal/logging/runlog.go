package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const runLogTimeLayout = "2006-01-02 15:04:05"

// RunLog is a console logger whose lines are also buffered so they can be
// persisted as a plaintext log once the run is over.
type RunLog struct {
	*zap.Logger
	buf *lockedBuffer
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewRunLog returns a logger that prints "[YYYY-MM-DD HH:MM:SS] message"
// lines to console and keeps a copy in memory.
func NewRunLog(console io.Writer, level string) *RunLog {
	if console == nil {
		console = io.Discard
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "T",
		MessageKey:       "M",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format(runLogTimeLayout) + "]")
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	buf := &lockedBuffer{}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.NewMultiWriteSyncer(zapcore.Lock(zapcore.AddSync(console)), buf),
		ParseLevel(level),
	)
	return &RunLog{Logger: zap.New(core), buf: buf}
}

// Contents returns everything logged so far.
func (l *RunLog) Contents() string {
	return l.buf.String()
}

// Save writes the buffered log to path, creating parent directories.
func (l *RunLog) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(l.buf.String()), 0o644)
}
