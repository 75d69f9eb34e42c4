// Package meshsim simulates an IQRF coordinator and its bonded nodes.
//
// A Network implements transport.Channel and answers the DPA requests the
// configuration writer issues: peripheral enumeration, bonded devices,
// HWP configuration read and write, configuration byte writes, security
// and FRC acknowledged broadcasts including the extra result. Per-node FRC
// replies can be scripted per round and faults can be injected for any
// request, so engine tests are deterministic.
//
// Bridge serves a Network over a length-prefixed stream, standing in for a
// network DPA bridge.
package meshsim
