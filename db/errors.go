package db

import (
	"errors"
	"fmt"
)

type Kind int

const (
	OpenFailed Kind = iota + 1
	TransactionFailed
	CommitFailed
	CodecMismatch
)

func (k Kind) String() string {
	switch k {
	case OpenFailed:
		return "open failed"
	case TransactionFailed:
		return "transaction failed"
	case CommitFailed:
		return "commit failed"
	case CodecMismatch:
		return "codec mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrOpenFailed        = errors.New("open failed")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrCommitFailed      = errors.New("commit failed")
	ErrCodecMismatch     = errors.New("codec mismatch")
	ErrClosed            = errors.New("mintdb: handle is closed")
)

// StorageError is a fault of the underlying store. A CommitFailed error
// leaves the outcome of its transaction indeterminate.
type StorageError struct {
	Kind Kind
	Op   string
	Key  []byte
	Err  error
}

func (e *StorageError) Error() string {
	msg := fmt.Sprintf("mintdb: %s: %s", e.Op, e.Kind)
	if e.Key != nil {
		msg += fmt.Sprintf(" (key %x)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrOpenFailed:
		return e.Kind == OpenFailed
	case ErrTransactionFailed:
		// a failed commit is a failed transaction
		return e.Kind == TransactionFailed || e.Kind == CommitFailed
	case ErrCommitFailed:
		return e.Kind == CommitFailed
	case ErrCodecMismatch:
		return e.Kind == CodecMismatch
	}
	return false
}

type ViolationKind int

const (
	// UnexpectedPresent: an InsertNew found a prior value.
	UnexpectedPresent ViolationKind = iota + 1
	// UnexpectedAbsent: a Delete found no prior value.
	UnexpectedAbsent
)

func (k ViolationKind) String() string {
	switch k {
	case UnexpectedPresent:
		return "unexpected_present"
	case UnexpectedAbsent:
		return "unexpected_absent"
	default:
		return "unknown"
	}
}

// ExistenceViolation reports a batch item whose assumption about the prior
// presence of its key was false. The item's write has still been applied.
type ExistenceViolation struct {
	Index int
	Kind  ViolationKind
	Key   []byte
}

func (v *ExistenceViolation) Error() string {
	switch v.Kind {
	case UnexpectedPresent:
		return fmt.Sprintf("batch item %d replaced existing key %x", v.Index, v.Key)
	case UnexpectedAbsent:
		return fmt.Sprintf("batch item %d deleted absent key %x", v.Index, v.Key)
	}
	return fmt.Sprintf("batch item %d: existence violation on key %x", v.Index, v.Key)
}

// BatchError stops a batch at item Index. Index is -1 when the failure
// belongs to the batch as a whole.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("batch failed: %v", e.Err)
	}
	return fmt.Sprintf("batch failed at item %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

func IsExistenceViolation(err error) bool {
	var v *ExistenceViolation
	return errors.As(err, &v)
}

func storageError(kind Kind, op string, key []byte, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Kind: kind, Op: op, Key: key, Err: err}
}
