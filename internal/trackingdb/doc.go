// Package trackingdb persists production tracking entities in SQLite:
// projects, assets with their tasks, nested sequences, shots, shot asset
// links, filesystem locations, users, and review notes, published files and
// versions.
package trackingdb
