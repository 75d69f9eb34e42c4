// Package persistence stores gateway state that must survive restarts.
//
// JournalStore keeps the pending FRC unwind of an interrupted broadcast
// as a JSON file so the coordinator can be restored on the next start.
// HistoryStore records completed configuration writes in SQLite.
package persistence
