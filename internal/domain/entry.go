package domain

// EntryType represents the type of a remote listing entry
type EntryType int

const (
	EntryTypeFile EntryType = iota
	EntryTypeFolder
	EntryTypeUnknown
)

// RemoteEntry represents one entry in a shared-folder listing
type RemoteEntry struct {
	// Name is the entry name, unique within its listing
	Name string

	// Type indicates if this is a file or a folder
	Type EntryType

	// Size in bytes (0 for folders)
	Size int64

	// ContentHash is the lowercase hex content hash reported by the
	// remote service (empty for folders)
	ContentHash string
}

// IsFile returns true if this is a regular file entry
func (e RemoteEntry) IsFile() bool {
	return e.Type == EntryTypeFile
}

// IsFolder returns true if this is a folder entry
func (e RemoteEntry) IsFolder() bool {
	return e.Type == EntryTypeFolder
}

// ListingPage is one page of a paginated shared-folder listing.
// Cursor continues the listing when HasMore is true.
type ListingPage struct {
	Entries []RemoteEntry
	Cursor  string
	HasMore bool
}
