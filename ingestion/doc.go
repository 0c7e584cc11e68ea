// Package ingestion keeps the vector index in step with documents and their
// external blocks.
//
// The Pipeline type handles three kinds of work:
//   - Live edits: DocumentSaved schedules a debounced reindex per document.
//     Rapid saves coalesce into one job using the content of the last save.
//   - External blocks: bookmarks, files and folders are extracted, chunked
//     and embedded either synchronously (IndexExternalBlock) or through a
//     bounded task queue served by a worker pool (SubmitExternalBlock).
//   - Deletes: DocumentDeleted and RemoveExternalBlock remove chunks and
//     cancel pending work, so a job finishing after a delete never
//     resurrects its chunks.
//
// At most one job runs per document id at a time. Jobs for different
// documents run independently. Failures of background work are logged,
// recorded in block states and delivered on the Failures channel.
package ingestion
