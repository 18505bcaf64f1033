//go:build linux

// Package discover resolves which threads of a target process are async
// worker threads, following the four-step fallback chain of spec.md §4.3.
//
// Each step is cheap to run in isolation and, like the teacher's cgroup
// v1/v2 probing, is attempted in order until one succeeds: there is no
// single reliable signal across runtime versions, so the chain degrades
// gracefully from "the caller told us the prefix" down to "guess from the
// largest same-named thread group".
package discover

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cong-or/hud/internal/config"
	"github.com/cong-or/hud/internal/symbol"
)

// Result is the outcome of a successful discovery step.
type Result struct {
	// Workers are the thread IDs hud instruments.
	Workers []uint32
	// BlockingPool are thread IDs identified as the runtime's dedicated
	// blocking-task pool, reported but never treated as worker threads
	// (spec.md §4.3 step 3, Non-goals: hud never instruments them).
	BlockingPool []uint32
	// Method names which step of the chain produced this result, surfaced
	// on the C9 status line.
	Method string
}

// StackSampler captures a short window of resolved stacks across every
// thread of pid, keyed by thread ID. Discover's step 3
// (StackClassification) uses it to recognize runtime internals by frame
// content rather than by thread name. cmd/hud currently passes a nil
// sampler, so step 3 is skipped there.
type StackSampler interface {
	SampleAll(ctx context.Context, pid int, window time.Duration) (map[uint32][]symbol.ResolvedFrame, error)
}

// Discoverer implements kernel.WorkerDiscoverer, running the fallback
// chain and returning just the worker TID set (the interface kernel.Loader
// depends on); use Discover directly for the full Result including the
// blocking pool and the method that succeeded.
type Discoverer struct {
	cfg     config.Config
	sampler StackSampler
}

// New constructs a Discoverer. sampler may be nil; StackClassification is
// then skipped and the chain falls through to LargestGroup.
func New(cfg config.Config, sampler StackSampler) *Discoverer {
	return &Discoverer{cfg: cfg, sampler: sampler}
}

// Discover implements kernel.WorkerDiscoverer.
func (d *Discoverer) Discover(ctx context.Context, pid int) ([]uint32, error) {
	res, err := d.DiscoverFull(ctx, pid)
	if err != nil {
		return nil, err
	}
	return res.Workers, nil
}

// DiscoverFull runs the four-step chain in order and returns the first
// non-empty Result. When cfg.WorkerPrefix is set, only step 1 runs.
func (d *Discoverer) DiscoverFull(ctx context.Context, pid int) (Result, error) {
	if len(d.cfg.WorkerPrefix) > 0 {
		workers, ok := ExplicitPrefix(pid, d.cfg.WorkerPrefix)
		if !ok {
			if _, err := threadComms(pid); err != nil {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("discover: no thread of pid %d matches worker prefix %q", pid, d.cfg.WorkerPrefix)
		}
		return Result{Workers: workers, Method: "explicit-prefix"}, nil
	}

	if workers, ok := DefaultPrefixes(pid, config.DefaultWorkerPrefixes); ok {
		return Result{Workers: workers, Method: "default-prefixes"}, nil
	}

	if d.sampler != nil {
		workers, blocking, err := d.StackClassification(ctx, pid, config.WorkerDiscoveryWindow)
		if err == nil && len(workers) > 0 {
			return Result{Workers: workers, BlockingPool: blocking, Method: "stack-classification"}, nil
		}
	}

	workers, err := LargestGroup(pid)
	if err != nil {
		return Result{}, fmt.Errorf("discover: all fallback steps exhausted: %w", err)
	}
	return Result{Workers: workers, Method: "largest-group"}, nil
}

// ExplicitPrefix returns every thread of pid whose comm starts with
// prefix. An empty result is NOT a fallback trigger elsewhere in the
// chain: the caller asked for this prefix by name, so DiscoverFull
// reports an empty match as an error rather than trying the next step.
func ExplicitPrefix(pid int, prefix string) ([]uint32, bool) {
	threads, err := threadComms(pid)
	if err != nil {
		return nil, false
	}
	var out []uint32
	for tid, comm := range threads {
		if strings.HasPrefix(comm, prefix) {
			out = append(out, tid)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	sortUint32(out)
	return out, true
}

// DefaultPrefixes tries each of prefixes in order (spec.md §4.3 step 2:
// the two canonical Tokio worker prefixes, accounting for the kernel's
// 15-byte comm truncation).
func DefaultPrefixes(pid int, prefixes []string) ([]uint32, bool) {
	threads, err := threadComms(pid)
	if err != nil {
		return nil, false
	}
	for _, prefix := range prefixes {
		var out []uint32
		for tid, comm := range threads {
			if strings.HasPrefix(comm, truncateComm(prefix)) {
				out = append(out, tid)
			}
		}
		if len(out) > 0 {
			sortUint32(out)
			return out, true
		}
	}
	return nil, false
}

// StackClassification samples every thread's stack for window and
// classifies threads whose resolved frames match one of
// cfg.RuntimeSignatures as workers, and frames matching a
// "...::blocking::" signature as the blocking pool (spec.md §4.3 step 3).
func (d *Discoverer) StackClassification(ctx context.Context, pid int, window time.Duration) (workers, blockingPool []uint32, err error) {
	if d.sampler == nil {
		return nil, nil, fmt.Errorf("discover: no stack sampler configured")
	}
	samples, err := d.sampler.SampleAll(ctx, pid, window)
	if err != nil {
		return nil, nil, err
	}

	signatures := d.cfg.RuntimeSignatures
	if len(signatures) == 0 {
		signatures = config.DefaultRuntimeSignatures
	}

	for tid, frames := range samples {
		switch classifyFrames(frames, signatures) {
		case classWorker:
			workers = append(workers, tid)
		case classBlocking:
			blockingPool = append(blockingPool, tid)
		}
	}
	sortUint32(workers)
	sortUint32(blockingPool)
	return workers, blockingPool, nil
}

type frameClass int

const (
	classUnknown frameClass = iota
	classWorker
	classBlocking
)

// blockingPoolSignature marks the dedicated blocking-task pool, checked
// ahead of the general worker signatures since "tokio::runtime::blocking"
// (a worker signature: workers submit to the blocking pool) is a prefix
// of the pool's own frames.
const blockingPoolSignature = "blocking::pool"

func classifyFrames(frames []symbol.ResolvedFrame, signatures []string) frameClass {
	for _, f := range frames {
		if strings.Contains(f.FunctionName, blockingPoolSignature) {
			return classBlocking
		}
	}
	for _, f := range frames {
		for _, sig := range signatures {
			if strings.Contains(f.FunctionName, sig) {
				return classWorker
			}
		}
	}
	return classUnknown
}

// LargestGroup enumerates every thread of pid, groups by a
// truncation-and-suffix-normalized comm, and returns the largest group's
// TIDs (spec.md §4.3 step 4, the chain's final fallback).
func LargestGroup(pid int) ([]uint32, error) {
	threads, err := threadComms(pid)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return nil, fmt.Errorf("discover: no threads found for pid %d", pid)
	}

	groups := make(map[string][]uint32)
	for tid, comm := range threads {
		key := normalizeGroupName(comm)
		groups[key] = append(groups[key], tid)
	}

	var bestKey string
	for key, tids := range groups {
		if len(tids) > len(groups[bestKey]) {
			bestKey = key
		}
	}
	out := groups[bestKey]
	sortUint32(out)
	return out, nil
}

// normalizeGroupName strips a trailing "-<digits>" worker index and
// truncates to the kernel's 15-byte comm limit so e.g. "tokio-runtime-w0"
// and "tokio-runtime-w12" (truncated identically by the kernel in some
// configurations) group together.
func normalizeGroupName(comm string) string {
	trimmed := comm
	if idx := strings.LastIndexByte(trimmed, '-'); idx >= 0 {
		if _, err := strconv.Atoi(trimmed[idx+1:]); err == nil {
			trimmed = trimmed[:idx]
		}
	}
	return truncateComm(trimmed)
}

func truncateComm(s string) string {
	const commMax = 15
	if len(s) > commMax {
		return s[:commMax]
	}
	return s
}

// threadComms reads the comm of every thread under /proc/<pid>/task,
// mirroring the teacher's raw /proc-scanning idiom (pkg/system/proc) for
// per-thread data procfs's typed Proc type doesn't expose.
func threadComms(pid int) (map[uint32]string, error) {
	taskDir := fmt.Sprintf("/proc/%d/task", pid)
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return nil, fmt.Errorf("discover: read %s: %w", taskDir, err)
	}

	out := make(map[uint32]string, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := readComm(filepath.Join(taskDir, e.Name(), "comm"))
		if err != nil {
			continue
		}
		out[uint32(tid)] = comm
	}
	return out, nil
}

func readComm(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", fmt.Errorf("discover: empty comm at %s", path)
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func sortUint32(s []uint32) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
