package deltacodec

import "errors"

var (
	errOriginalHashMismatch  = errors.New("original content does not match delta's recorded original_hash")
	errReconstructionMismatch = errors.New("reconstructed content does not match delta's recorded new_hash")
	errUnknownOpKind          = errors.New("unknown block op kind")
	errBadBlockSize           = errors.New("delta record has wrong block_size")
)
