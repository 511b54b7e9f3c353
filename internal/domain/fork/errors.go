package fork

import "errors"

// ErrSourceUnavailable indicates the source project could not be read at all.
var ErrSourceUnavailable = errors.New("fork source unavailable")
