package matchsync

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("match document not found")
	ErrStaleWrite = errors.New("stale match write")
)

// Handler receives every snapshot written to a match, including the
// subscriber's own writes. Each call gets its own copy of the document.
type Handler func(doc *Document)

// Subscription stops delivery when closed.
type Subscription interface {
	Close() error
}

// Store is the shared document store both clients of a match talk to.
type Store interface {
	// Read returns the current document or ErrNotFound.
	Read(ctx context.Context, matchID string) (*Document, error)
	// Write replaces the document and notifies subscribers. Stores running
	// with a compare-and-swap guard return ErrStaleWrite when the stored
	// document would not adopt doc.
	Write(ctx context.Context, doc *Document) error
	// Seed stores doc only if the match has no document yet and returns
	// whichever document is stored afterwards.
	Seed(ctx context.Context, doc *Document) (*Document, error)
	Subscribe(ctx context.Context, matchID string, h Handler) (Subscription, error)
}

// supersedes applies the reconciliation rule to two documents.
func supersedes(current, next *Document) bool {
	if current == nil {
		return true
	}
	return adopts(current.GameOver, current.MoveNumber, next.GameOver, next.MoveNumber)
}

func adopts(localOver bool, localMove int, remoteOver bool, remoteMove int) bool {
	if remoteOver && !localOver {
		return true
	}
	if localOver && !remoteOver {
		return false
	}
	return remoteMove > localMove
}
