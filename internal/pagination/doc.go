// Package pagination turns cursor-paginated list APIs into flat, ordered
// record streams.
//
// A Requestor fetches one page per call and tracks whatever cursor state the
// remote API hands back between calls. An Iterator drains a Requestor record
// by record, fetching the next page only once the current one is consumed, so
// at most one page is buffered at a time.
//
// Page fetch errors end the stream. Following bufio.Scanner, the error is
// reported out of band: Next (and the sequence returned by All) simply stops,
// and Err reports what happened. Records yielded before the failure remain
// valid, which lets callers apply everything received so far and decide
// separately how to handle the truncation.
//
// Example:
//
//	it := pagination.NewIterator(requestor)
//	for record := range it.All(ctx) {
//		apply(record)
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// Iterators are single-use and not safe for concurrent use.
package pagination
