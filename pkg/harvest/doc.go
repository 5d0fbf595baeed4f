// Package harvest drives a search provider over consecutive monthly windows,
// fetching every result into the content store and checkpointing progress so
// an interrupted run resumes where it stopped.
//
// Cursor providers are paged until the cursor stops advancing, with the
// checkpoint saved after each page. Enumerating providers have every
// identifier of the window collected up front, de-duplicated and sorted,
// and the checkpoint records the last processed identifier.
//
// A window whose count or paging fails is aborted. The run carries on with
// later windows but stops moving the checkpoint, so the next run starts again
// at the aborted window.
package harvest
