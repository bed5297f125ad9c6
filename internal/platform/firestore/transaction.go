package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// TxFunc runs inside a transaction. Firestore retries contended transactions, so it may run
// more than once and must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption adjusts a single transaction.
type TxOption func(*txPolicy)

type txPolicy struct {
	attempts int
	timeout  time.Duration
	readOnly bool
}

func defaultTxPolicy() txPolicy {
	return txPolicy{attempts: 5, timeout: 15 * time.Second}
}

func (p txPolicy) options() []firestore.TransactionOption {
	opts := []firestore.TransactionOption{firestore.MaxAttempts(p.attempts)}
	if p.readOnly {
		opts = append(opts, firestore.ReadOnly)
	}
	return opts
}

// WithTxAttempts caps how often a contended transaction is retried.
func WithTxAttempts(attempts int) TxOption {
	return func(p *txPolicy) {
		if attempts > 0 {
			p.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the transaction including retries. A tighter caller deadline wins.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(p *txPolicy) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// ReadOnly runs the transaction as a consistent read with no writes.
func ReadOnly() TxOption {
	return func(p *txPolicy) { p.readOnly = true }
}

// RunTransaction runs fn in a transaction on the shared client. Errors are classified with
// WrapError under op.
func (p *Provider) RunTransaction(ctx context.Context, op string, fn TxFunc, opts ...TxOption) error {
	if fn == nil {
		return WrapError(op, errors.New("transaction function is nil"))
	}
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}

	policy := defaultTxPolicy()
	for _, opt := range opts {
		if opt != nil {
			opt(&policy)
		}
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > policy.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.timeout)
		defer cancel()
	}

	return WrapError(op, client.RunTransaction(ctx, fn, policy.options()...))
}
