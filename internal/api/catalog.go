package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed catalog_schema.json
var catalogSchemaJSON []byte

var (
	catalogSchema     *gojsonschema.Schema
	catalogSchemaOnce sync.Once
	catalogSchemaErr  error
)

func getCatalogSchema() (*gojsonschema.Schema, error) {
	catalogSchemaOnce.Do(func() {
		catalogSchema, catalogSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(catalogSchemaJSON))
	})
	return catalogSchema, catalogSchemaErr
}

// ValidateCatalog checks a raw /scripts payload against the accepted shapes:
// an array, or an object with a "scripts" array, whose elements are filename
// strings or descriptor objects. It returns one description per violation.
func ValidateCatalog(body []byte) ([]string, error) {
	schema, err := getCatalogSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling catalog schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validating catalog: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems, nil
}

type catalogEntry struct {
	Filename   string          `json:"filename"`
	FilePath   *string         `json:"file_path"`
	FileSize   *float64        `json:"file_size"`
	CreatedAt  json.RawMessage `json:"created_at"`
	ModifiedAt json.RawMessage `json:"modified_at"`
}

func decodeCatalog(body []byte) ([]Script, error) {
	const op = "scripts"
	problems, err := ValidateCatalog(body)
	if err != nil {
		return nil, contractError(op, "Unrecognized scripts response", err)
	}
	if len(problems) > 0 {
		return nil, contractError(op, "Unrecognized scripts response: "+strings.Join(problems, "; "), nil)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Scripts []json.RawMessage `json:"scripts"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, contractError(op, "Unrecognized scripts response", err)
		}
		list = wrapped.Scripts
	}

	scripts := make([]Script, 0, len(list))
	for _, raw := range list {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			scripts = append(scripts, Script{Filename: name, FilePath: name})
			continue
		}
		var entry catalogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, contractError(op, "Unrecognized script entry", err)
		}
		script := Script{
			Filename:   entry.Filename,
			CreatedAt:  scalarString(entry.CreatedAt),
			ModifiedAt: scalarString(entry.ModifiedAt),
		}
		if entry.FilePath != nil {
			script.FilePath = *entry.FilePath
		}
		if entry.FileSize != nil {
			size := int64(*entry.FileSize)
			script.FileSize = &size
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}
