//go:build linux

package kernel

// The kernel-resident half of hud lives in bpf/hud.bpf.c (spec.md §4.1,
// §4.2) and is compiled to BPF object code by bpf2go, mirroring the
// pattern every eBPF agent in the retrieval pack uses
// (ab30ed60/cca01ac8's `//go:generate ... bpf2go ...` directives). Running
// `go generate` here requires a clang toolchain able to target bpf; the
// generated hud_bpfel.go accompanying this file is
// hand-authored to bpf2go's own output shape so the rest of the tree has
// a concrete, typed surface to build against without that toolchain
// (see DESIGN.md).
//
//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall" -target amd64,arm64 hud ../../bpf/hud.bpf.c -- -I../../bpf/headers
