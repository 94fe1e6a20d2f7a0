// Package cache is the node's local store: a flat directory where every file
// is either a locally uploaded object or a copy fetched from a peer. The
// filesystem is the only index; an entry exists iff <Directory>/<name> is a
// regular file. Writes go through a temp file + rename so readers never see a
// partially written body, but there is no per-name locking: a pending
// eviction may remove content written after it was armed.
package cache
