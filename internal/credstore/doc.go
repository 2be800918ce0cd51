// Package credstore persists per-provider credentials: OAuth tokens, the
// linked account email, and the optional project binding.
//
// The Store interface is the narrow surface the auth core writes through.
// Two implementations exist:
//
//   - FileStore persists one JSON file per provider under
//     ~/.config/signet/credentials. Files are written with 0600 and the
//     directory with 0700. Filenames are derived from a SHA-256 hash of the
//     provider id, so ids never appear in directory listings. Every store,
//     read-miss repair, and clear emits a SECURITY_AUDIT log line; token
//     values themselves are never logged.
//
//   - MemoryStore keeps everything in a map. Used by tests and by callers
//     that must not touch the filesystem.
//
// FileStore re-reads the backing file on every access instead of trusting an
// in-process cache. Several signet processes (CLI invocations, a running
// broker) share the same credential directory, and each must observe the
// others' writes.
package credstore
