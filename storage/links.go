package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// LinkFiles writes each channel's links to <Dir>/<key>.json as a JSON array.
type LinkFiles struct {
	Dir string
}

var _ LinkWriter = LinkFiles{}

func (f LinkFiles) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", &StorageError{Op: "write", Entity: "links", ID: key, Err: ErrInvalidInput}
	}
	return filepath.Join(f.Dir, key+".json"), nil
}

// WriteLinks atomically replaces the file for key, creating Dir on demand.
// A nil slice is written as an empty array.
func (f LinkFiles) WriteLinks(key string, links []string) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	if links == nil {
		links = []string{}
	}
	if err := writeJSONAtomic(p, links); err != nil {
		return "", &StorageError{Op: "write", Entity: "links", ID: key, Err: err}
	}
	return p, nil
}

// ReadLinks returns the links stored for key.
func (f LinkFiles) ReadLinks(key string) ([]string, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &StorageError{Op: "read", Entity: "links", ID: key, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Entity: "links", ID: key, Err: err}
	}
	var links []string
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, &StorageError{Op: "read", Entity: "links", ID: key, Err: ErrStorageCorrupt}
	}
	return links, nil
}
