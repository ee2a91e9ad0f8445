// Package blobstore abstracts the slow storage tier that holds offloaded
// frame records.
//
// The frame store writes each ingested frame as one immutable blob and reads
// it back on demand during propagation. Backends:
//
//   - MemoryStore: host-memory tier, the default.
//   - LocalStore: local-filesystem spill for long videos.
//   - minio.Store: S3-compatible remote storage (subpackage).
//
// Blobs are write-once: Put replaces atomically, readers never observe a
// partial write.
package blobstore
