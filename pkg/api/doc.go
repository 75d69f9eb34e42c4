// Package api translates the iqmeshNetwork_WriteTrConf JSON messages to
// configuration writes and serves them over HTTP.
//
// A request names the target, the options to change and an optional
// security password and user key:
//
//	{
//	  "mType": "iqmeshNetwork_WriteTrConf",
//	  "data": {
//	    "msgId": "test",
//	    "repeat": 1,
//	    "req": {"deviceAddr": 255, "rfChannelA": 10},
//	    "returnVerbose": true
//	  }
//	}
//
// The response echoes mType and msgId and carries a status code (0 on
// success, 1000 and above per error class), writeSuccess, restartNeeded
// and, for broadcasts, the nodes that did not respond or did not match.
// Verbose responses also carry every raw exchange.
//
// Routes:
//
//	POST /api/v1/trconf   run one write
//	GET  /api/v1/history  list completed writes
//	GET  /api/v1/health   gateway status
package api
