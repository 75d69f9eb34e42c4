// Package dpa implements the DPA packet layer used to talk to IQRF mesh nodes.
//
// DPA is a small request/response protocol carried over the coordinator's
// serial or SPI link. Every request starts with a fixed header:
//
//	NADR(2, LE) PNUM(1) PCMD(1) HWPID(2, LE) PData(0..56)
//
// Responses repeat the header with bit 7 of PCMD set, followed by an error
// code (ErrN) and the node's DPA value byte:
//
//	NADR(2) PNUM(1) PCMD|0x80(1) HWPID(2) ErrN(1) DpaValue(1) PData(0..56)
//
// A response with ErrN 0xFF is a confirmation: the coordinator accepted a
// request addressed to a remote node and the real response follows later.
//
// This package provides typed builders for the requests used by the
// configuration writer (OS write/read configuration, set security, FRC,
// coordinator bonded devices, enumeration) and parsers for their responses.
// It performs no I/O.
package dpa
