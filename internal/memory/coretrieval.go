package memory

import (
	"github.com/corescaffold/cogkernel/internal/store"
)

// appendCoRetrieval appends one entry to the bounded FIFO co-retrieval
// log (spec §4.5/§3).
func appendCoRetrieval(path string, entry CoRetrievalEntry, maxEntries int) error {
	if err := store.AppendJSONL(path, entry); err != nil {
		return err
	}
	return store.TruncateJSONL(path, maxEntries)
}
