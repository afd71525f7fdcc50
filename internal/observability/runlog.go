package observability

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunLog is the append-only sink for stage-completion events. Each event is one
// JSON line holding the stage, the run and a snapshot of the stage output.
type RunLog struct {
	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
}

// OpenRunLog truncates path and returns a log writing to it.
func OpenRunLog(path string) (*RunLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "event"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	return &RunLog{file: file, logger: zap.New(core)}, nil
}

// Record appends one stage-completion event. A nil RunLog discards the event.
func (l *RunLog) Record(stage, runID string, snapshot any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info("stage completed",
		zap.String("stage", stage),
		zap.String("run", runID),
		zap.Any("data", snapshot))
}

// Close flushes and closes the underlying file.
func (l *RunLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.logger.Sync()
	return l.file.Close()
}
