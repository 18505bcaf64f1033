package config

import "errors"

var (
	errMutuallyExclusive   = errors.New("config: replay-file is mutually exclusive with process-identifier/process-name")
	errNoTarget            = errors.New("config: one of process-identifier, process-name, or replay-file is required")
	errBadThreshold        = errors.New("config: blocking threshold must be > 0")
	errBadWindow           = errors.New("config: rolling-window seconds must be >= 0")
	errHeadlessNeedsExport = errors.New("config: headless mode requires an export-file path")
)
