package index

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"nsresolve/internal/shared/util"
)

// PersistedVersion is the only persisted layout this build can replay.
const PersistedVersion = 1

type persistedEntry struct {
	FQCN      string `json:"fqcn"`
	ClassName string `json:"className"`
}

type persistedFile struct {
	MTime   float64          `json:"mtime"`
	Entries []persistedEntry `json:"entries"`
}

type persistedIndex struct {
	Version int                      `json:"version"`
	Files   map[string]persistedFile `json:"files"`
}

const persistedSchema = `{
  "type": "object",
  "required": ["version", "files"],
  "properties": {
    "version": {"type": "integer"},
    "files": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["mtime", "entries"],
        "properties": {
          "mtime": {"type": "number"},
          "entries": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["fqcn", "className"],
              "properties": {
                "fqcn": {"type": "string", "minLength": 1},
                "className": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(persistedSchema)

// decodePersisted validates data and returns the stored index. Malformed
// data and unknown versions are errors so the caller rebuilds.
func decodePersisted(data []byte) (*persistedIndex, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("parse persisted index: %w", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, item := range result.Errors() {
			messages = append(messages, item.String())
		}
		return nil, fmt.Errorf("persisted index failed validation: %s", strings.Join(messages, "; "))
	}

	var p persistedIndex
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode persisted index: %w", err)
	}
	if p.Version != PersistedVersion {
		return nil, fmt.Errorf("persisted index version %d, want %d", p.Version, PersistedVersion)
	}
	if p.Files == nil {
		p.Files = map[string]persistedFile{}
	}
	return &p, nil
}

func encodePersisted(files map[string]fileRecord) ([]byte, error) {
	p := persistedIndex{Version: PersistedVersion, Files: make(map[string]persistedFile, len(files))}
	for _, uri := range util.SortedStringKeys(files) {
		rec := files[uri]
		entries := make([]persistedEntry, 0, len(rec.Entries))
		for _, e := range rec.Entries {
			entries = append(entries, persistedEntry{FQCN: e.FQCN, ClassName: e.ClassName})
		}
		p.Files[uri] = persistedFile{MTime: float64(rec.MTime), Entries: entries}
	}
	return json.Marshal(p)
}
