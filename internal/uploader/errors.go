package uploader

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an upload failure. Payloads are well formed by
// construction, so there is no validation kind.
type Kind int

const (
	// KindNetwork covers connection refused, DNS failures and other
	// transport faults.
	KindNetwork Kind = iota
	// KindTimeout means the request exceeded the configured bound.
	KindTimeout
)

func (k Kind) String() string {
	if k == KindTimeout {
		return "timeout"
	}
	return "network"
}

// Error is the single failure signal surfaced by Upload. It carries the
// underlying transport cause. Failed uploads are never retried.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s error: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// classify maps a transport error onto the taxonomy.
func classify(err error) *Error {
	kind := KindNetwork
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		kind = KindTimeout
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Cause: err}
}
