package audit

import "errors"

// ErrInvalidLog is returned by Create for a log without an action or entity type.
var ErrInvalidLog = errors.New("audit: log requires action and entity type")
