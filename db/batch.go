package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BatchItem is one of InsertNew, Insert, Delete or MaybeDelete.
type BatchItem interface {
	batchItem()
	key() []byte
}

// InsertNew writes Value under Key and expects Key to be absent.
type InsertNew struct {
	Key   []byte
	Value []byte
}

// Insert writes Value under Key.
type Insert struct {
	Key   []byte
	Value []byte
}

// Delete removes Key and expects it to be present.
type Delete struct {
	Key []byte
}

// MaybeDelete removes Key if present.
type MaybeDelete struct {
	Key []byte
}

func (InsertNew) batchItem()   {}
func (Insert) batchItem()      {}
func (Delete) batchItem()      {}
func (MaybeDelete) batchItem() {}

func (i InsertNew) key() []byte   { return i.Key }
func (i Insert) key() []byte      { return i.Key }
func (i Delete) key() []byte      { return i.Key }
func (i MaybeDelete) key() []byte { return i.Key }

// Batch items are applied in order.
type Batch []BatchItem

const (
	OpInsertNew   = "insert_new"
	OpInsert      = "insert"
	OpDelete      = "delete"
	OpMaybeDelete = "maybe_delete"
	OpRemove      = "remove"
	OpViolation   = "violation"
)

// OpName returns the wire name of the item's directive.
func OpName(item BatchItem) string {
	switch item.(type) {
	case InsertNew:
		return OpInsertNew
	case Insert:
		return OpInsert
	case Delete:
		return OpDelete
	case MaybeDelete:
		return OpMaybeDelete
	}
	panic(fmt.Sprintf("unknown batch item %T", item))
}

// KeyOf returns the key an item targets.
func KeyOf(item BatchItem) []byte {
	return item.key()
}

// NewBatchItem builds an item from its wire name.
func NewBatchItem(op string, key, value []byte) (BatchItem, error) {
	switch strings.ToLower(op) {
	case OpInsertNew, "insertnew":
		return InsertNew{Key: key, Value: value}, nil
	case OpInsert, "put":
		return Insert{Key: key, Value: value}, nil
	case OpDelete, "del":
		return Delete{Key: key}, nil
	case OpMaybeDelete, "maybedelete":
		return MaybeDelete{Key: key}, nil
	}
	return nil, fmt.Errorf("unknown batch op %q", op)
}

type ViolationPolicy int

const (
	// ContinueOnViolation records existence violations and keeps applying.
	ContinueOnViolation ViolationPolicy = iota
	// AbortOnViolation stops the batch at the first existence violation.
	AbortOnViolation
)

func (p ViolationPolicy) String() string {
	if p == AbortOnViolation {
		return "abort"
	}
	return "continue"
}

func ParseViolationPolicy(s string) (ViolationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "continue":
		return ContinueOnViolation, nil
	case "abort":
		return AbortOnViolation, nil
	}
	return 0, fmt.Errorf("unknown violation policy %q", s)
}

type BatchReport struct {
	// Applied counts the items whose effects are committed.
	Applied    int
	Violations []ExistenceViolation
}

// Clean reports whether every item met its existence expectation.
func (r *BatchReport) Clean() bool {
	return len(r.Violations) == 0
}

// Apply runs the items of batch in order, each in its own transaction.
// The batch is not atomic: when item i fails with a storage fault, the
// items before it stay committed and the items after it are not attempted.
// The returned report is valid also when err is non nil.
func (h *Handle) Apply(ctx context.Context, batch Batch) (*BatchReport, error) {
	report := &BatchReport{}
	for i, item := range batch {
		if err := ctx.Err(); err != nil {
			return report, &BatchError{Index: i, Err: &StorageError{Kind: TransactionFailed, Op: "apply", Err: err}}
		}
		var v *ExistenceViolation
		err := h.withTransaction(ctx, "apply", func(ctx context.Context, s *scope) error {
			var err error
			v, err = s.apply(ctx, i, item)
			return err
		})
		if err != nil {
			return report, &BatchError{Index: i, Err: err}
		}
		report.Applied++

		if v != nil {
			report.Violations = append(report.Violations, *v)
			h.violation(ctx, v)
			if h.policy == AbortOnViolation {
				return report, &BatchError{Index: i, Err: v}
			}
		}
	}
	return report, nil
}

// ApplyAtomic runs the whole batch in one transaction. Any storage fault,
// and with AbortOnViolation any existence violation, rolls back every item.
func (h *Handle) ApplyAtomic(ctx context.Context, batch Batch) (*BatchReport, error) {
	var violations []ExistenceViolation
	err := h.withTransaction(ctx, "apply_atomic", func(ctx context.Context, s *scope) error {
		for i, item := range batch {
			v, err := s.apply(ctx, i, item)
			if err != nil {
				s.rollback = true
				return &BatchError{Index: i, Err: err}
			}
			if v != nil {
				violations = append(violations, *v)
				if h.policy == AbortOnViolation {
					s.rollback = true
					return &BatchError{Index: i, Err: v}
				}
			}
		}
		return nil
	})

	// a rolled back or failed scope only reports the violation that aborted it
	if err == nil || isAbortingViolation(err) {
		for i := range violations {
			h.violation(ctx, &violations[i])
		}
	}
	report := &BatchReport{Violations: violations}
	if err != nil {
		if _, ok := err.(*BatchError); !ok {
			err = &BatchError{Index: -1, Err: err}
		}
		return report, err
	}
	report.Applied = len(batch)
	return report, nil
}

func isAbortingViolation(err error) bool {
	var be *BatchError
	if !errors.As(err, &be) {
		return false
	}
	_, ok := be.Err.(*ExistenceViolation)
	return ok
}

func (s *scope) apply(ctx context.Context, index int, item BatchItem) (*ExistenceViolation, error) {
	switch it := item.(type) {
	case InsertNew:
		_, existed, err := s.insert(ctx, it.Key, it.Value)
		if err != nil {
			return nil, err
		}
		if existed {
			return &ExistenceViolation{Index: index, Kind: UnexpectedPresent, Key: it.Key}, nil
		}
	case Insert:
		if _, _, err := s.insert(ctx, it.Key, it.Value); err != nil {
			return nil, err
		}
	case Delete:
		_, existed, err := s.remove(ctx, it.Key)
		if err != nil {
			return nil, err
		}
		if !existed {
			return &ExistenceViolation{Index: index, Kind: UnexpectedAbsent, Key: it.Key}, nil
		}
	case MaybeDelete:
		if _, _, err := s.remove(ctx, it.Key); err != nil {
			return nil, err
		}
	default:
		panic(fmt.Sprintf("unknown batch item %T", item))
	}
	return nil, nil
}

func (h *Handle) violation(ctx context.Context, v *ExistenceViolation) {
	existenceViolations.WithLabelValues(v.Kind.String()).Inc()
	h.log.Warn("existence violation", "index", v.Index, "kind", v.Kind.String(), "key", fmt.Sprintf("%x", v.Key))
	h.publish(ctx, Event{Partition: h.name, Op: OpViolation, Key: v.Key, Existed: v.Kind == UnexpectedPresent})
}
