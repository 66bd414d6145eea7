package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/bundleforge/internal/ctxlog"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug logger that writes into the
// returned buffer. The log is dumped on failure when BUNDLEFORGE_TEST_LOGS is
// "true".
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Cleanup(func() {
		if os.Getenv("BUNDLEFORGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return ctxlog.WithLogger(context.Background(), logger), logBuffer
}

// WriteFiles writes each relative path under root, creating directories as
// needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// DataDir describes the runtime data directory to create for a test.
type DataDir struct {
	Platform string
	Archs    []string
	// Stubs are frameworks that ship a precompiled stub object.
	Stubs []string
	// Descriptors are frameworks that ship a foreign-interface descriptor.
	Descriptors []string
}

// MakeDataDir lays out a runtime data directory and returns its path.
func MakeDataDir(t *testing.T, d DataDir) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "data")
	files := map[string]string{}
	for _, a := range d.Archs {
		files[filepath.Join(d.Platform, "kernel-"+a+".bc")] = "kernel " + a
	}
	for _, fw := range d.Stubs {
		files[filepath.Join(d.Platform, fw+"_stubs.o")] = "stubs " + fw
	}
	for _, fw := range d.Descriptors {
		files[filepath.Join("BridgeSupport", fw+".bridgesupport")] = "<signatures/>"
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, d.Platform), 0o755))
	WriteFiles(t, root, files)
	return root
}
