package mpc

import "errors"

// ErrProtocolAbort reports a failed or desynchronized protocol run. The run
// is unrecoverable: no partial state survives, a fresh run restarts from the
// share phase. Retry policy belongs to the caller, never to the engine.
var ErrProtocolAbort = errors.New("protocol aborted")
