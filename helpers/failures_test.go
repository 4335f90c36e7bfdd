package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "failures.log")
	log := NewFailureLog(path)

	log.Record("abidjan.locanto.ci", "https://abidjan.locanto.ci/ID_1/Ad.html", errors.New("timeout"))
	log.Record("extract", "https://abidjan.locanto.ci/ID_2/Ad.html", errors.New("boom"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[abidjan.locanto.ci] https://abidjan.locanto.ci/ID_1/Ad.html: timeout")
	assert.Contains(t, lines[1], "[extract] https://abidjan.locanto.ci/ID_2/Ad.html: boom")
}

func TestFailureLogConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.log")
	log := NewFailureLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Record("site", "https://example.test/ID_1/x.html", errors.New("failed"))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, strings.Count(string(data), "\n"))
}
