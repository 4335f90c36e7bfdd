package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sjsage522/classifiedworker/logger"
)

// FailureLog appends failed URLs to a plain text file so they can be
// re-crawled later. It is safe for concurrent use.
type FailureLog struct {
	mu   sync.Mutex
	path string
}

// NewFailureLog creates a failure log writing to path
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Path returns the file the log appends to
func (l *FailureLog) Path() string {
	return l.path
}

// Record appends "[timestamp] [source] url: error" to the log file
func (l *FailureLog) Record(source, rawURL string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mkErr := os.MkdirAll(filepath.Dir(l.path), 0o755); mkErr != nil {
		logger.Warn("failure log directory: %v", mkErr)
		return
	}

	f, fileErr := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		logger.Warn("failure log open: %v", fileErr)
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] [%s] %s: %v\n", timestamp, source, rawURL, err)
}
