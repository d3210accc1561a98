package timestamper

import "errors"

// ErrArenaExhausted is returned by PushItem when MaxPending items are
// already queued awaiting a reference match, and by PushReference when
// MaxPending references are already queued awaiting an item.
var ErrArenaExhausted = errors.New("timestamper: too many items pending a reference match")
