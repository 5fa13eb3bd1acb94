// Package ingest submits parsed CSV rows to the platform in fixed-size
// batches.
//
// Batches are sent strictly one after another. A failed batch is logged and
// counted but does not stop the rest of the upload. When every batch has
// been dispatched the platform's job tracker is told the upload ended.
package ingest
