// Package textutil provides text hashing and summarization utilities.
//
// The primary use cases are:
//   - Deriving stable content hashes and cache keys for translation requests
//   - Hashing page URLs for cache scoping
//   - Producing short payload snippets for error messages and logs
package textutil
