package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("QUERYCACHE_LOGGING_LEVEL", "disabled")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestDemo(t *testing.T) {
	out := run(t, "demo", "--capacity", "5")

	assert.Contains(t, out, "1) CACHE MISS")
	assert.Contains(t, out, "GET x after TTL, found = false")
	assert.Contains(t, out, "reads for 5 concurrent misses: 1")
	assert.Contains(t, out, "equal = true")
	assert.Contains(t, out, "size = 5, k0 still cached = false")
	assert.Contains(t, out, "refetched = true")
	assert.Contains(t, out, "machines still cached = true")
}

func TestBench(t *testing.T) {
	out := run(t, "bench", "--capacity", "100", "--keys", "200", "--goroutines", "4", "--ops", "100", "--write-every", "10")

	assert.Contains(t, out, "RESULTS")
	assert.Contains(t, out, "Total Operations : 400")
	assert.Contains(t, out, "Capacity     : 100")
}

func TestBenchRejectsBadFlags(t *testing.T) {
	t.Setenv("QUERYCACHE_LOGGING_LEVEL", "disabled")
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"bench", "--goroutines", "0"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
