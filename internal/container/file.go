package container

import "github.com/Aman-CERP/vectorfs/internal/search"

// FileRecord is the public name spec.md's data model uses for a stored
// file; the type itself lives in internal/search (the component that
// owns the file store) to avoid a container<->search import cycle.
type FileRecord = search.FileRecord
