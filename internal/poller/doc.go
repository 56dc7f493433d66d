// Package poller keeps Prometheus gauge families in sync with EC2 fleet
// state.
//
// Each poller owns one gauge family and reconciles it in passes. A pass
// first snapshots the label sets currently exposed, then streams every record
// the API reports, upserting each record's series and marking its identity as
// seen, and finally deletes the series whose identity was not seen. If the
// record stream fails partway, the pass aborts before the delete step, so an
// interrupted pass can add and update series but never remove them.
// Metrics stay level-based: a series persists exactly as long as consecutive
// complete passes observe its record, with no expiry clock attached.
//
// Two pollers exist. InstancePoller exposes one series per running instance
// with value 1, identity being the instance id. SpotPricePoller exposes the
// current spot price as the gauge value, identity being the availability
// zone, instance type and product triple.
//
// Construction verifies API access with a dry-run request and registers the
// gauge family; both must succeed or the poller is not built at all.
package poller
