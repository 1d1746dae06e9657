// Package cache is a file-backed cache of remote API responses. Probe
// responses are deterministic for a historical window, so caching them makes
// an interrupted multi-hour run cheap to resume.
package cache

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// sanitize replaces reserved filesystem characters with '-'
func sanitize(id string) string {
	id = strings.ReplaceAll(id, "/", "-")
	id = strings.ReplaceAll(id, "?", "-")
	id = strings.ReplaceAll(id, "&", "-")
	return id
}

// Read reads a response from the cache (if it is present)
func Read(dir, id string) ([]byte, error) {
	object := path.Join(dir, sanitize(id))

	contents, err := os.ReadFile(object)
	if err != nil {
		return nil, fmt.Errorf("unable to read file %s %s", object, err)
	}

	return contents, nil
}

// Update inserts a response into the cache
func Update(dir, id string, contents []byte) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Println("Error creating cache dir", err)
		return
	}

	object := path.Join(dir, sanitize(id))

	err := os.WriteFile(object, contents, 0644)
	if err != nil {
		fmt.Println("Error writing cache file", err)
	}
}
