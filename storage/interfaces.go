package storage

import "goofish-watcher/models"

// RecordAppender is the interface any output sink must satisfy. Appends
// are one-way: a sink never rewrites or reorders what it already holds.
type RecordAppender interface {
	Append(rec *models.PersistedRecord) error
	Close() error
}
