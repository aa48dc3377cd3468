package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
)

// manifestEntry is one object of an upload manifest. Body is taken as text;
// BodyBase64 carries binary content and wins when both are set.
type manifestEntry struct {
	Key        string  `json:"key"`
	Body       string  `json:"body"`
	BodyBase64 *string `json:"body_base64"`
}

// readManifest decodes a JSON array of manifest entries.
func readManifest(r io.Reader) ([]bucketsync.Object, error) {
	var entries []manifestEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	objects := make([]bucketsync.Object, 0, len(entries))
	for i, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("manifest entry %d: key is required", i)
		}

		body := []byte(e.Body)
		if e.BodyBase64 != nil {
			decoded, err := base64.StdEncoding.DecodeString(*e.BodyBase64)
			if err != nil {
				return nil, fmt.Errorf("manifest entry %d (%s): %w", i, e.Key, err)
			}
			body = decoded
		}
		objects = append(objects, bucketsync.Object{Key: e.Key, Body: body})
	}
	return objects, nil
}
