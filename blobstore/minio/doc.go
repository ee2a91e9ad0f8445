// Package minio implements blobstore.BlobStore for MinIO and any
// S3-compatible object storage.
//
// Use it as the slow frame tier when a session's video does not fit on the
// local machine, or when several workers share one ingested video:
//
//	client, _ := minio.New("play.min.io", &minio.Options{...})
//	store := miniostore.NewStore(client, "videos", "session-42/")
//	sess, _ := videoseg.Open(ctx, src, videoseg.WithBlobStore(store))
//
// ReadAt issues HTTP range requests, so sequential propagation only ever
// downloads the frames it touches.
package minio
