package api

import (
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
)

// Response status codes.
const (
	StatusOK             = 0
	StatusServiceError   = 1000
	StatusInternal       = 1001
	StatusGetBondedNodes = 1002
	StatusNoBondedNodes  = 1003
	StatusRFBand         = 1004
	StatusEnableFrc      = 1005
	StatusDisableFrc     = 1006
)

// statusOK is the status string of a successful write.
const statusOK = "ok"

// Status maps the outcome of a write to a status code and string. A write
// that returned no error but did not succeed, such as a broadcast with
// silent nodes, is a service error.
func Status(res *trconf.Result, err error) (int, string) {
	if err == nil {
		if res != nil && !res.WriteSuccess {
			return StatusServiceError, "Write failed"
		}
		return StatusOK, statusOK
	}
	return statusOf(trconf.KindOf(err)), err.Error()
}

func statusOf(k trconf.Kind) int {
	switch k {
	case trconf.KindCapability:
		return StatusInternal
	case trconf.KindGetBondedNodes:
		return StatusGetBondedNodes
	case trconf.KindNoBondedNodes:
		return StatusNoBondedNodes
	case trconf.KindRFBand:
		return StatusRFBand
	case trconf.KindEnableFrc:
		return StatusEnableFrc
	case trconf.KindDisableFrc:
		return StatusDisableFrc
	default:
		return StatusServiceError
	}
}
