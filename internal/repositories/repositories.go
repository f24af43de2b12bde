// Package repositories implements SQLite persistence for the sync service's entities.
//
// Each repository implements models.Repository[T] for a specific entity type.
// Key implementations:
//   - [SessionRepository] : browser/CLI session credential persistence
package repositories
