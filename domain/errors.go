package domain

import "fmt"

var (
	ErrorStaleLedger  = fmt.Errorf("ledger changed since it was read")
	ErrorCurveChanged = fmt.Errorf("configured curve differs from the pinned one")
	ErrorUnauthorized = fmt.Errorf("unauthorized")
	ErrorEmptyHolder  = fmt.Errorf("holder must not be empty")
	ErrorNotFound     = fmt.Errorf("not found")
)
