// Package backups provides the durable local store for in-progress recording
// backups.
//
// # Overview
//
// The store is a passive keyed table of opaque byte records: one record per
// recording session, keyed by session id, each write a full replacement of
// the previous one. Keys are independent; there are no cross-session
// invariants, so the only concurrency rule is "last full write wins".
//
// Key Types
//
//   - type Repository: put/get/delete/getAll contract
//   - type SQLiteRepository: modernc.org/sqlite over dbx.DBTX
//   - type BadgerRepository: embedded Badger KV, on disk or in memory
//   - type InMemoryRepository: process-local map, for tests
//
// Typical Usage
//
//	repo := backups.NewSQLiteRepository(db)
//	_ = repo.Put(ctx, sessionID, record)
//	rec, err := repo.Get(ctx, sessionID) // common.ErrorNotFound when absent
//	all, _ := repo.GetAll(ctx)
//	_ = repo.Delete(ctx, sessionID)
package backups
