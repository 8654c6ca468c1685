// Package storage persists the trigger entity cache.
//
// The cache is what lets reconciliation reuse stable entity identities
// across restarts: per entity it keeps the identifier, the name it was
// derived from, the last bound definition (context blob), and an opaque
// host-metadata blob that triggerd preserves but never interprets.
package storage
