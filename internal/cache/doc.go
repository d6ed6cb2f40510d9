// Package cache stores paragraph alignments on disk so that a document read
// again at the same speed is highlighted without aligning it anew.
//
// Each record lives in its own file under a per-document directory. Records
// are written atomically, so several processes may share a cache directory.
// Recently used records are also kept in memory and revalidated against the
// file on every load.
package cache
