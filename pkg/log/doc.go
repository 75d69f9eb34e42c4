// Package log provides structured protocol capture for the DPA gateway.
//
// This package defines the Logger interface and Event types for recording
// every exchange on the coordinator link at multiple layers (transport, DPA,
// service). It is separate from operational logging (slog): protocol capture
// is a complete machine-readable trace of frames, decoded packets and the
// side effects the configuration writer applies to the coordinator.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/iqrf/dpa.dlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent)
//   - DPA: decoded request, confirmation and response headers (PacketEvent)
//   - Service: lease, FRC peripheral and FRC timing changes (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events (.dlog). The dpa-log
// tool views, filters and summarizes them.
package log
