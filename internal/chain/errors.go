package chain

import "errors"

var errMissingDeltaBase = errors.New("delta artifact has no resolvable base version in the preceding chain")
