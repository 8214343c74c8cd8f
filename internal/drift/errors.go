package drift

import "errors"

// Sentinel errors for the storage core. Callers match these with errors.Is;
// implementations wrap them with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrNotInitialized is returned when a store is used before it has
	// been opened or initialized.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrNotFound is returned when a path, token, or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a destination already exists or a
	// path exists with a conflicting entry type.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotADirectory is returned when a directory operation targets a
	// regular file.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory is returned when a file operation targets a
	// directory.
	ErrIsADirectory = errors.New("is a directory")

	// ErrDirectoryNotEmpty is returned when deleting a directory that
	// still has direct children.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrContentUnavailable is returned when the content store is not
	// ready or a content fetch failed.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrNetworkMode is returned when a network operation is attempted in
	// a mode that forbids it (e.g. a remote fetch on a private node).
	ErrNetworkMode = errors.New("operation not allowed in this network mode")

	// ErrNoContent is returned when reading an entry that has no content
	// reference (a metadata-only record).
	ErrNoContent = errors.New("entry has no content reference")
)
