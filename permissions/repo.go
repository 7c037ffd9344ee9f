package permissions

// Repo is the storage contract for permission entries. Entries are upserted,
// never deleted; absence implies deny.
type Repo interface {
	// ListAll returns every stored entry.
	ListAll() ([]*Entry, error)

	// Upsert creates or updates the entry keyed by (role, feature).
	Upsert(entry *Entry) error

	// BulkUpsert applies all entries atomically: if any entry fails, none
	// are committed.
	BulkUpsert(entries []*Entry) error
}
