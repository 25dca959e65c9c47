package config

import "errors"

var (
	// ErrEmptyPath is returned by Load for an empty path.
	ErrEmptyPath = errors.New("config: empty path")

	// ErrUnsupportedFormat is returned for anything but YAML or JSON.
	ErrUnsupportedFormat = errors.New("config: unsupported format")

	// ErrLoadFailed wraps file read errors.
	ErrLoadFailed = errors.New("config: failed to load")

	// ErrParseFailed wraps parser errors.
	ErrParseFailed = errors.New("config: failed to parse")

	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("config: invalid")

	// ErrWatchFailed wraps file watcher errors.
	ErrWatchFailed = errors.New("config: watch failed")
)
