// Package repositories implements document persistence for users and boards.
//
// Every backend satisfies [DocumentStore], a schemaless get/set/update contract keyed by (collection, id):
//   - [MongoStore] : MongoDB collections, partial updates via $set
//   - [SQLiteStore] : a single documents table holding JSON bodies, partial updates via json_set
//   - [MemoryStore] : process-local maps, used by tests and the "memory" driver
//
// Update merges top-level fields only and fails with [ErrNotFound] when the document is absent.
// Set replaces the whole document and is reserved for documents with a single writer (boards).
//
// Typed repositories sit on top:
//   - [UserRepository] : user documents, Spotify credentials and profile fields
//   - [BoardRepository] : board documents
package repositories
