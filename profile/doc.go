// Package profile provides optional runtime profiling for sassy.
//
// It wraps [github.com/pkg/profile] behind the "pprof" build tag. Without
// the tag, [Modes] is empty and [Config.Start] returns a no-op stopper, so
// callers never need their own build constraints.
//
// Profiles are useful when tuning the compiler on large stylesheets:
//
//	go build -tags pprof -o sassy .
//	sassy --pprof-mode=cpu compile site.yaml
//	go tool pprof ~/.cache/sassy/pprof/cpu.pprof
//
// Supported modes with the tag: allocs, block, clock, cpu, goroutine, heap,
// mem, mutex, thread, trace.
package profile
