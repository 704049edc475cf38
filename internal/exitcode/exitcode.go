// Package exitcode holds the process exit codes of the pregclass commands.
package exitcode

const (
	Success         = 0
	UsageError      = 1 // bad flags, config file or column mapping
	ValidationError = 2 // input unreadable or mapped columns missing
	DBConnError     = 3
	WriteError      = 4 // output file could not be written
	ClassifyError   = 5
	StoreError      = 6 // result store or migration failed
)
