package pagination

import (
	"context"
	"iter"
	"slices"
)

// Requestor fetches consecutive pages of records from a remote list API.
// Implementations keep the cursor state the API needs between calls.
type Requestor[T any] interface {
	// NextPage returns the next page of records. ok is false once the
	// sequence is exhausted; after returning ok false or a non-nil error the
	// requestor is not called again. A page may be empty while ok is still
	// true, for example when server-side filtering leaves a page blank.
	NextPage(ctx context.Context) (page []T, ok bool, err error)
}

// Iterator drains a Requestor one record at a time, preserving the order in
// which the remote API returned records. It is single-use: once exhausted or
// failed it stays that way.
type Iterator[T any] struct {
	requestor Requestor[T]
	buffer    []T // current page, reversed so the next record pops off the end
	done      bool
	err       error
}

// NewIterator returns an Iterator over r positioned before the first page.
// Nothing is fetched until the first Next call.
func NewIterator[T any](r Requestor[T]) *Iterator[T] {
	return &Iterator[T]{requestor: r}
}

// Next returns the next record. ok is false once the stream is exhausted or a
// page fetch failed; Err distinguishes the two. Empty pages are skipped by
// fetching again immediately.
func (it *Iterator[T]) Next(ctx context.Context) (record T, ok bool) {
	for len(it.buffer) == 0 {
		if it.done {
			var zero T
			return zero, false
		}
		it.fetch(ctx)
	}
	last := len(it.buffer) - 1
	record = it.buffer[last]
	it.buffer = it.buffer[:last]
	return record, true
}

// fetch pulls one more page into the buffer. Either the whole page lands in
// the buffer or the iterator terminates; a partially applied page is never
// observable.
func (it *Iterator[T]) fetch(ctx context.Context) {
	page, ok, err := it.requestor.NextPage(ctx)
	if err != nil {
		it.err = err
		it.done = true
		return
	}
	if !ok {
		it.done = true
		return
	}
	slices.Reverse(page)
	it.buffer = page
}

// All returns a single-use sequence over the remaining records. Breaking out
// of the range early leaves the iterator usable for further Next calls.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			record, ok := it.Next(ctx)
			if !ok {
				return
			}
			if !yield(record) {
				return
			}
		}
	}
}

// Err returns the page fetch error that ended the stream, or nil if the
// stream is still live or was drained cleanly.
func (it *Iterator[T]) Err() error {
	return it.err
}
