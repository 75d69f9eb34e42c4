// Package trconf writes DPA configuration bytes and security values to
// one node or, through FRC acknowledged broadcast, to every bonded node.
//
// A write runs as one sequence of exchanges under an exclusive channel
// lease:
//
//	probe coordinator → resolve bonded nodes → (probe node) → build bytes
//	  → unicast chunks | FRC broadcast rounds → security → restart policy
//
// Named options are turned into (address, value, mask) triplets by
// Options.ConfigBytes according to the DPA version of the written node;
// Merge adds raw config bytes and rejects duplicate addresses.
//
// For broadcast the FRC peripheral of the coordinator is enabled if
// needed and its response time set to zero. Both are restored by a
// deferred guard on every return path, and the pending undo can be
// persisted through a Journal so Recover can replay it after a crash.
//
// Retries of both paths go through Do, which consumes an Outcome per
// attempt.
package trconf
