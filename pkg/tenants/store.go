package tenants

import "context"

// Store is the persistence contract for the tenant document. The registry
// accepts any implementation; pkg/credstore provides file- and
// postgres-backed ones.
//
// Concurrency contract: Read may run concurrently with other Reads; Write
// and Update exclude all other operations on the same document. Update runs
// the mutation as a single critical section so read-check-write sequences
// (tenant create, add user) are atomic against concurrent writers.
type Store interface {
	// Read returns the full persisted document. A missing backing store is
	// first-run bootstrap and yields an empty document, not an error.
	// Unrecoverable corruption yields credstore.ErrCorrupt.
	Read(ctx context.Context) (Document, error)

	// Write persists the full document, backing up the prior contents first.
	Write(ctx context.Context, doc Document) error

	// Update applies fn to the current document under the writer lock and
	// persists the result. If fn returns an error nothing is written and
	// the error is returned unchanged.
	Update(ctx context.Context, fn func(Document) error) error
}
