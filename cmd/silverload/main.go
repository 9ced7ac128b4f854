// Command silverload snapshots raw workbooks into a bronze parquet store and
// incrementally loads validated rows into silver PostgreSQL tables.
package main

import (
	"os"
)

func main() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
