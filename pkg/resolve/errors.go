package resolve

import "errors"

// Resolution failures. Both are fatal to the job attempt: criteria must
// change before a retry can succeed.
var (
	ErrNoClusterMatch = errors.New("resolve: no cluster matches criteria")
	ErrNoCommandMatch = errors.New("resolve: no command matches criteria")
)
