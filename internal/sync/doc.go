// Package sync runs the incremental extract, transform and load cycle that keeps
// the movies search index in step with the content database.
//
// # Cycle
//
// A cycle reads the checkpoint, extracts one page of modified rows per stream
// together with every film they affect, flattens the rows into documents, loads
// the documents in bulk batches and finally commits the new watermarks. The
// stages run strictly one after another and the commit only happens once the
// load stage fully succeeded, so a failed cycle is simply repeated by the next
// run and re-publishes the same documents.
//
// # Run guard
//
// Loop.Run takes the checkpoint run guard before doing anything else. When
// another process holds it, Run returns checkpoint.ErrAlreadyRunning without
// touching the checkpoint, the source or the index.
//
// # Errors
//
// Failed stages are reported as *Error carrying the Stage, so callers can tell
// an extract failure from a load failure while errors.Is still reaches the
// underlying sentinel errors.
package sync
