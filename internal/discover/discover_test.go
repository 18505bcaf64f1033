//go:build linux

package discover

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/cong-or/hud/internal/config"
	"github.com/cong-or/hud/internal/symbol"
	"github.com/stretchr/testify/require"
)

// threadComms always reads the real /proc, which these tests cannot
// redirect to a fake tree, so most of them exercise the pure
// grouping/classification helpers directly; the last two run against the
// current process's own task directory.

func TestNormalizeGroupNameStripsIndexAndTruncates(t *testing.T) {
	require.Equal(t, "tokio-runtime-w", normalizeGroupName("tokio-runtime-w3"))
	require.Equal(t, "tokio-runtime-w", normalizeGroupName("tokio-runtime-worker-12"))
}

func TestTruncateComm(t *testing.T) {
	require.Equal(t, "123456789012345", truncateComm("123456789012345678"))
	require.Equal(t, "short", truncateComm("short"))
}

func TestClassifyFramesWorker(t *testing.T) {
	frames := []symbol.ResolvedFrame{{FunctionName: "tokio::runtime::scheduler::multi_thread::worker::run"}}
	require.Equal(t, classWorker, classifyFrames(frames, config.DefaultRuntimeSignatures))
}

func TestClassifyFramesBlockingPool(t *testing.T) {
	frames := []symbol.ResolvedFrame{{FunctionName: "tokio::runtime::blocking::pool::Inner::run"}}
	require.Equal(t, classBlocking, classifyFrames(frames, config.DefaultRuntimeSignatures))
}

func TestClassifyFramesUnknown(t *testing.T) {
	frames := []symbol.ResolvedFrame{{FunctionName: "main::do_work"}}
	require.Equal(t, classUnknown, classifyFrames(frames, config.DefaultRuntimeSignatures))
}

type fakeSampler struct {
	samples map[uint32][]symbol.ResolvedFrame
	err     error
}

func (f *fakeSampler) SampleAll(ctx context.Context, pid int, window time.Duration) (map[uint32][]symbol.ResolvedFrame, error) {
	return f.samples, f.err
}

func TestStackClassificationSplitsWorkersAndPool(t *testing.T) {
	sampler := &fakeSampler{samples: map[uint32][]symbol.ResolvedFrame{
		1: {{FunctionName: "tokio::runtime::scheduler::Core::run"}},
		2: {{FunctionName: "tokio::runtime::blocking::pool::Inner::run"}},
		3: {{FunctionName: "main::unrelated"}},
	}}
	d := New(config.Config{}, sampler)
	workers, pool, err := d.StackClassification(context.Background(), 1234, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, workers)
	require.Equal(t, []uint32{2}, pool)
}

func TestStackClassificationNoSampler(t *testing.T) {
	d := New(config.Config{}, nil)
	_, _, err := d.StackClassification(context.Background(), 1234, time.Millisecond)
	require.Error(t, err)
}

// TestLargestGroupOnRealProcess runs LargestGroup against the current
// process, which always has at least one thread.
func TestLargestGroupOnRealProcess(t *testing.T) {
	pid := os.Getpid()
	workers, err := LargestGroup(pid)
	require.NoError(t, err)
	require.NotEmpty(t, workers)
}

func TestThreadCommsReadsRealTaskDir(t *testing.T) {
	pid := os.Getpid()
	threads, err := threadComms(pid)
	require.NoError(t, err)
	require.NotEmpty(t, threads)
	for tid := range threads {
		_, statErr := os.Stat(filepath.Join("/proc", strconv.Itoa(pid), "task", strconv.Itoa(int(tid))))
		require.NoError(t, statErr)
	}
}
