// Package discovery implements mDNS/DNS-SD discovery for IQRF gateways.
//
// Two service types are used:
//
// # Gateway (_iqrfgw._tcp)
//
// The gateway advertises its HTTP API. Instance name is the gateway name.
// TXT records include: ver (gateway version), api (API base path) and
// optionally band (coordinator RF band).
//
// # DPA Bridge (_iqrfdpa._tcp)
//
// Network bridges expose a coordinator over TCP with length prefixed DPA
// frames. The gateway browses for them when the TCP link has no address.
// TXT records include: ver (bridge version) and optionally dpa (DPA
// version as four hex digits), band and id (coordinator module ID).
package discovery
