package mapping

import "github.com/Konsultn-Engineering/remap/sqlnode"

// Statement pairs a SQL source with the row maps that shape its results.
type Statement struct {
	ID     string
	Source sqlnode.Source

	// RowMapIDs name one row map per leading cursor of the execution.
	RowMapIDs []string

	// ResultSets names the additional cursors, in arrival order, that
	// foreign property maps consume.
	ResultSets []string

	// ResultOrdered promises that rows sharing a parent identity arrive
	// contiguously, letting finished parents flush early.
	ResultOrdered bool

	// KeyGenerator names a registered generator whose value is assigned
	// to KeyProperty on the argument before execution.
	KeyGenerator string
	KeyProperty  string
}
