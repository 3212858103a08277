// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the records produced by the local connectors.
//
// The store is a single SQLite database (modernc.org/sqlite, no cgo) holding
// the mail outbox, calendar events and pizza order previews. The model router
// itself keeps no state here.
//
// # Key Types
//
//   - Store: opened database with typed save and list operations
//   - EmailRecord, EventRecord, OrderRecord: one row each
//
// # Usage
//
//	store, err := storage.Open(filepath.Join(dataDir, "assist.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.SaveEmail(ctx, &storage.EmailRecord{To: to, Subject: s, Body: b})
//
// # Storage Location
//
// The default database is ~/.rigrun-assist/assist.db. The path ":memory:"
// opens a private in-memory database.
package storage
