// Package storage keeps harvested documents on disk, one file per identifier.
//
// Layout: <root>/<YYYY>/<MM>/[<Category>/]<ID>.xml. The presence of a file is the
// only record that a document was fetched; there is no separate index. Files are
// written through a temporary sibling and renamed into place, so a crash never
// leaves a partial document under its final name.
package storage
