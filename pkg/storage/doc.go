// Package storage provides file management for collection run artifacts.
//
// The storage package handles:
//   - Creating and managing the output directory
//   - Naming export workbooks and their sibling run reports
//
// The Manager type is the primary interface. Export filenames carry the post
// id and a timestamp; a name collision gets a numeric suffix instead of an
// overwrite, so repeated runs against the same post never destroy earlier
// exports.
//
// Usage:
//
//	manager, err := storage.NewManager("output_directory")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	path := manager.ExportPath("1957110173920", time.Now())
//	reportPath := manager.ReportPath(path)
package storage
