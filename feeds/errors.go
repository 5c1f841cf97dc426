package feeds

import "errors"

// ErrUnknownSource is returned when a sync is requested for a source no
// adapter is registered under.
var ErrUnknownSource = errors.New("unknown feed source")
