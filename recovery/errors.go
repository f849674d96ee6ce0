package recovery

import "errors"

// ErrNilExecute is recorded when Recover is given no execute function.
var ErrNilExecute = errors.New("recovery: nil execute function")
