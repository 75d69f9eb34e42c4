// Package connection keeps the coordinator link attached.
//
// A Supervisor dials the link, attaches it to a transport.Conn and redials
// with exponential backoff whenever the Conn reports the link lost:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// The base delay starts at 500ms, doubles per failed attempt and is capped
// at 30s. It resets after every successful attach.
//
// Writes in flight when the link drops fail with transport.ErrLinkDown;
// the supervisor never replays them.
package connection
