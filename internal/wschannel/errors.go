package wschannel

import "errors"

// ErrNotConnected is returned by Send when the channel has no open connection.
var ErrNotConnected = errors.New("wschannel: not connected")
