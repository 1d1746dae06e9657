// Package export writes table rows out as CSV, for offline analysis or a
// Drive upload.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes a slice of row structs to file, truncating any previous
// contents. Column names come from the csv struct tags.
func WriteCSV(file string, rows interface{}) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("unable to create %s %s", file, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("unable to marshal rows to %s %s", file, err)
	}

	return nil
}

// Write streams a slice of row structs as CSV to w.
func Write(w io.Writer, rows interface{}) error {
	return gocsv.Marshal(rows, w)
}

// AppendFile adds to the end of a file (creates if not exist).
func AppendFile(file, contents string, truncate bool) error {
	mode := os.O_CREATE | os.O_WRONLY
	if truncate {
		mode |= os.O_TRUNC
	} else {
		mode |= os.O_APPEND
	}
	f, err := os.OpenFile(file, mode, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(contents)
	if err != nil {
		return err
	}

	return nil
}
