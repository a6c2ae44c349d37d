// Package core provides the business logic for importing GEDCOM data.
//
// This package holds all domain logic independent of any transport layer.
// It is used by the HTTP API, the command line tool and tests alike, and
// talks to storage only through the [Store] interface.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Record Handlers: registered per level-0 record type; each knows which
//     table stores the type and which secondary indexes it maintains.
//   - Importer: canonicalizes one record, hoists inline media, writes the
//     type row and the place, date, link and name indexes.
//   - Service: the entry point for file imports, pending changes, tree
//     settings and emptying trees.
//   - Streaming: files are decompressed, decoded and split into records
//     without being loaded into memory.
//   - Audit: every import, change and tree reset is logged.
//
// # Record Registry
//
// Handlers are registered at init time using [Register]. The records
// subpackage registers the standard types; import it for its side effects:
//
//	import _ "github.com/JonMunkholm/gedimport/internal/core/records"
//
// A handler with an empty Type is the fallback for every other standard
// type. Custom types starting with "_" are skipped unless registered.
//
// # File Imports
//
//  1. Client calls [Service.StartImport] with an io.Reader
//  2. The stream is decompressed and decoded from its declared charset
//  3. Each record is imported under its own savepoint in one transaction;
//     failing records are rolled back and reported, not fatal
//  4. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//
// # Pending Changes
//
// Edits are stored with [Service.SubmitChange] and later replayed by
// [Service.AcceptAllChanges], which deletes the old rows of the record and
// imports the new text, or dropped by [Service.RejectAllChanges].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - GED001-GED002: GEDCOM errors (malformed records, oversized records)
//   - DB001-DB004: Database errors (duplicates, connections, deadlocks)
//   - FILE001-FILE004: File errors (size, empty, compression)
//   - IMP001-IMP005: Import errors (cancelled, busy, not found, timeout)
//   - CHG001-CHG003: Change and tree errors
package core
