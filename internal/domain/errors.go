package domain

import "errors"

// Listing errors
var (
	// ErrFolderNotSupported indicates a folder entry was encountered
	// under a shared link; recursive download is not implemented
	ErrFolderNotSupported = errors.New("recursive download is not supported")

	// ErrUnknownEntryType indicates the listing returned an entry
	// that is neither a file nor a folder
	ErrUnknownEntryType = errors.New("unknown entry type")
)

// Transfer errors
var (
	// ErrHashMismatch indicates a downloaded file failed content-hash
	// verification
	ErrHashMismatch = errors.New("content hash mismatch")

	// ErrCredentialExpired indicates the access token has expired and
	// should be refreshed before retrying
	ErrCredentialExpired = errors.New("access credential expired")

	// ErrNotFound indicates the requested remote resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrMissingCredentials indicates neither an access token nor an
	// app key/secret pair was provided
	ErrMissingCredentials = errors.New("missing credentials")
)
