package ledger

import "errors"

var (
	ErrUnknownService   = errors.New("ledger: unknown service")
	ErrNotOwner         = errors.New("ledger: caller is not the service owner")
	ErrNotInvited       = errors.New("ledger: user is not invited")
	ErrAlreadySubmitted = errors.New("ledger: feedback already submitted")
	ErrBadSignature     = errors.New("ledger: interaction signature does not verify")
	ErrInvalidArgument  = errors.New("ledger: invalid argument")
)
