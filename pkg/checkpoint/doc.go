// Package checkpoint persists the harvest position as a single line of text.
//
// The file is replaced atomically on every save (temp file, fsync, rename),
// so a crash at any point leaves either the old or the new position on disk.
// Two line formats exist: PipeCodec for cursor-paginated providers and
// CommaCodec for providers that enumerate identifiers.
package checkpoint
