package process

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun_Success(t *testing.T) {
	requireShell(t)

	result, err := Run(context.Background(), Command{
		Path:  "sh",
		Args:  []string{"-c", "cat; echo done >&2"},
		Stdin: []byte("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello", string(result.Stdout))
	assert.Equal(t, "done\n", string(result.Stderr))
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRun_NonZeroExit(t *testing.T) {
	requireShell(t)

	result, err := Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "echo boom >&2; exit 3"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonZeroExit)
	require.NotNil(t, result)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "boom\n", string(result.Stderr))
}

func TestRun_Timeout(t *testing.T) {
	requireShell(t)

	start := time.Now()
	_, err := Run(context.Background(), Command{
		Path:    "sh",
		Args:    []string{"-c", "sleep 10"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_OutputLimit(t *testing.T) {
	requireShell(t)

	result, err := Run(context.Background(), Command{
		Path:        "sh",
		Args:        []string{"-c", "head -c 4096 /dev/zero"},
		OutputLimit: 1024,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutputLimit)
	require.NotNil(t, result)
	assert.Len(t, result.Stdout, 1024)

	_, err = Run(context.Background(), Command{
		Path:        "sh",
		Args:        []string{"-c", "head -c 4096 /dev/zero >&2"},
		OutputLimit: 1024,
	})
	assert.ErrorIs(t, err, ErrOutputLimit)
}

func TestRun_OutputLimitStopsEndlessWriter(t *testing.T) {
	requireShell(t)

	start := time.Now()
	_, err := Run(context.Background(), Command{
		Path:        "sh",
		Args:        []string{"-c", "while :; do echo xxxxxxxxxxxxxxxx; done"},
		Timeout:     20 * time.Second,
		OutputLimit: 64 * 1024,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutputLimit)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLimitedBuffer(t *testing.T) {
	overflows := 0
	b := NewLimitedBuffer(5, func() { overflows++ })

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, b.Exceeded())

	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "writes report full length")
	assert.True(t, b.Exceeded())
	assert.Equal(t, "abcde", string(b.Bytes()))

	_, _ = b.Write([]byte("more"))
	assert.Equal(t, 1, overflows)
	assert.Equal(t, "abcde", string(b.Bytes()))
}

func TestRun_ToolUnavailable(t *testing.T) {
	_, err := Run(context.Background(), Command{Path: "definitely-not-a-real-tool-xyz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

func TestRun_Env(t *testing.T) {
	requireShell(t)

	result, err := Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", "printf %s \"$GATE_TEST_VALUE\""},
		Env:  []string{"GATE_TEST_VALUE=42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", string(result.Stdout))
}

func TestLookPath(t *testing.T) {
	requireShell(t)

	assert.NotEmpty(t, LookPath("sh"))
	assert.NotEmpty(t, LookPath("definitely-not-a-real-tool-xyz", "sh"))
	assert.Empty(t, LookPath("definitely-not-a-real-tool-xyz"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt([]byte("  short\n"), 10))
	assert.Equal(t, "abcde...", Excerpt([]byte("abcdefghij"), 5))
	assert.Equal(t, "", Excerpt(nil, 5))
}
