package relay

import "encoding/json"

// Client-facing message names. These mirror the events the dashboard and
// transporter clients emit and listen on.
const (
	EventSubscribe      = "subscribe"
	EventUnsubscribe    = "unsubscribe"
	EventLocationUpdate = "location_update"
)

// Envelope is the wire frame exchanged with clients. Subscribe and
// unsubscribe carry Room; location updates carry Data, which is forwarded to
// subscribers verbatim.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}
