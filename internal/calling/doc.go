// Package calling resolves calling conventions and instruments the IR with
// hook markers that the dataflow analyzer interprets to materialize
// convention-specific effects: argument registers read at function entry and
// call sites, return registers defined after calls, stack-pointer cleanup.
//
// The central type is Hooks, which memoizes hook records by composite
// identity so that repeated instrumentation passes of an iterative analysis
// neither duplicate nor leak markers, and which deinstalls stale markers
// before installing new ones whenever the discovered convention, signature,
// or resolved call target changes between passes.
package calling
