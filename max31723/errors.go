package max31723

import "fmt"

// BusInitError reports that the bus could not be brought up. Callers decide
// whether to halt or retry.
type BusInitError struct {
	Stage string
	Err   error
}

func (e *BusInitError) Error() string {
	return fmt.Sprintf("max31723: bus init failed during %s: %v", e.Stage, e.Err)
}

func (e *BusInitError) Unwrap() error { return e.Err }

// TransactionError reports a failed blocking exchange.
type TransactionError struct {
	Op  string // "read" or "write"
	Reg Register
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("max31723: %s of register %s failed: %v", e.Op, e.Reg, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
