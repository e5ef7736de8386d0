// Package historical is the C2 component: a lazy, batched, cross-partition
// ordered reader of public trades out of a columnar store. The store is
// organized as one database per (exchange, instrument, channel) holding one
// table per (symbol, day), plus a per-day union view that merges every
// symbol for that date in timestamp order. Naming is an external contract
// (spec §6) — these are pure string builders, not helpers, and every other
// function in this package calls through them rather than inlining a format
// string.
package historical

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006_01_02"

// ConstructDatabaseName builds "{exchange}_{instrument}_{channel}", lowered
// per spec §6.
func ConstructDatabaseName(exchange, instrument, channel string) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s", exchange, instrument, channel))
}

// ConstructTableName builds the per-symbol per-day table name
// "{exchange}_{instrument}_{channel}_{yyyy_MM_dd}_{base}_{quote}".
func ConstructTableName(exchange, instrument, channel string, date time.Time, base, quote string) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s_%s_%s_%s",
		exchange, instrument, channel, date.Format(dateLayout), base, quote))
}

// ConstructUnionViewName builds the per-day union view name
// "{exchange}_{instrument}_{channel}_union_{yyyy_MM_dd}" that merges every
// symbol traded on that date, ordered by timestamp.
func ConstructUnionViewName(exchange, instrument, channel string, date time.Time) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s_union_%s",
		exchange, instrument, channel, date.Format(dateLayout)))
}
