package kv

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"

	pingcaplog "github.com/pingcap/log"

	"github.com/lmittmann/tint"
	tikverr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/txnkv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer trace.Tracer

func init() {
	l, p, _ := pingcaplog.InitLogger(&pingcaplog.Config{})

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	l, _ = config.Build()

	pingcaplog.ReplaceGlobals(l, p)

	tracer = otel.Tracer("github.com/aep/mintdb/kv")
}

var log = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: LogLevel}))

// LogLevel controls the verbosity of backend debug logging.
var LogLevel = new(slog.LevelVar)

// tikv treats an empty value as a delete, so every stored value carries
// a leading tag byte that reads strip again.
const tikvValueTag = 0

func untag(b []byte) ([]byte, error) {
	if len(b) == 0 || b[0] != tikvValueTag {
		return nil, fmt.Errorf("untagged value of length %d", len(b))
	}
	return b[1:], nil
}

type Tikv struct {
	k *txnkv.Client
}

type TikvWrite struct {
	txn      *txnkv.KVTxn
	err      error
	commited bool
	done     bool
}

func (w *TikvWrite) Commit(ctx context.Context) error {
	if w.err != nil {
		return w.err
	}
	if w.commited {
		return fmt.Errorf("already commited")
	}

	ctx, span := tracer.Start(ctx, "kv.TikvWrite.Commit")
	defer span.End()

	w.done = true
	err := w.txn.Commit(ctx)
	if err != nil {
		w.err = err
		return err
	}
	w.commited = true
	return nil
}

func (w *TikvWrite) Rollback() error {
	if w.commited {
		return fmt.Errorf("already commited")
	}
	if w.done {
		return w.err
	}
	w.done = true
	return w.txn.Rollback()
}

func (w *TikvWrite) Put(key []byte, value []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.txn.Set(key, append([]byte{tikvValueTag}, value...))
	if err != nil {
		w.Rollback()
		w.err = err
	}
	log.Debug("[tikv].Put:", "key", string(key), "err", err)
	return w.err
}

func (w *TikvWrite) Get(ctx context.Context, key []byte) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}

	ctx, span := tracer.Start(ctx, "kv.TikvWrite.Get")
	defer span.End()

	b, err := w.txn.Get(ctx, key)
	if err != nil {
		if tikverr.IsErrNotFound(err) {
			log.Debug("[tikv].Get:", "key", string(key), "err", "not found")
			return nil, ErrNotFound
		}
		log.Debug("[tikv].Get:", "key", string(key), "err", err)
		return nil, err
	}
	v, err := untag(b)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	log.Debug("[tikv].Get:", "key", string(key))
	return append([]byte{}, v...), nil
}

func (w *TikvWrite) Del(key []byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.txn.Delete(key)
	if err != nil {
		w.err = err
	}
	return err
}

func (w *TikvWrite) Iter(ctx context.Context, start []byte, end []byte) iter.Seq2[KeyAndValue, error] {
	return func(yield func(KeyAndValue, error) bool) {

		_, span := tracer.Start(ctx, "kv.TikvWrite.Iter")
		defer span.End()

		if w.err != nil {
			yield(KeyAndValue{}, w.err)
			return
		}

		it, err := w.txn.Iter(start, end)
		if err != nil {
			log.Debug("[tikv].Iter:", "start", string(start), "end", string(end), "err", err)
			yield(KeyAndValue{}, err)
			return
		}
		defer it.Close()

		log.Debug("[tikv].Iter:", "start", string(start), "end", string(end))
		for it.Valid() {

			log.Debug("[tikv].Iter:", "start", string(start), "end", string(end), "at", string(it.Key()))
			v, err := untag(it.Value())
			if err != nil {
				yield(KeyAndValue{}, fmt.Errorf("key %q: %w", it.Key(), err))
				return
			}
			kv := KeyAndValue{
				K: append([]byte(nil), it.Key()...),
				V: append([]byte{}, v...),
			}
			if !yield(kv, nil) {
				return
			}

			if err := it.Next(); err != nil {
				log.Debug("[tikv].Iter:", "start", string(start), "end", string(end), "err", err)
				yield(KeyAndValue{}, err)
				return
			}
		}
	}
}

func (w *TikvWrite) Close() {
	if !w.commited {
		w.Rollback()
	}
}

func (t *Tikv) Close() {
	t.k.Close()
}

func (t *Tikv) Write(ctx context.Context) (Write, error) {
	txn, err := t.k.Begin()
	if err != nil {
		return nil, err
	}
	return &TikvWrite{txn: txn}, nil
}

func (t *Tikv) Ping() error {
	_, err := t.k.CurrentTimestamp("global")
	return err
}

// NewTikv connects to the placement driver at endpoint, falling back to
// PD_ENDPOINT and then to a local default.
func NewTikv(endpoint string) (KV, error) {
	if endpoint == "" {
		endpoint = os.Getenv("PD_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "127.0.0.1:2379"
	}
	k, err := txnkv.NewClient([]string{endpoint})
	if err != nil {
		return nil, err
	}

	return &Tikv{k}, nil
}
