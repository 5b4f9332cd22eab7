// Package storage ships recovered recordings to object storage.
//
// Two uploaders are provided:
//
//   - S3Uploader streams the recording to an S3-compatible bucket with the
//     aws-sdk-go-v2 upload manager, using the client's own credentials.
//   - PresignedUploader asks the backend for a presigned PUT URL and sends
//     the bytes there, so the client never holds bucket credentials.
//
// Both satisfy services.Uploader.
package storage
