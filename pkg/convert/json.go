package convert

import (
	"encoding/json"
	"fmt"

	"github.com/notionmini/gonote/pkg/blocks"
)

// FormatError reports an import payload that could not be parsed for the
// named format. It is the user-visible error surface of the import path.
type FormatError struct {
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s document: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("invalid %s document", e.Format)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseJSONBlocks parses a serialized block array, the editor's native
// export format.
func ParseJSONBlocks(content string) ([]blocks.Block, error) {
	var bs []blocks.Block
	if err := json.Unmarshal([]byte(content), &bs); err != nil {
		return nil, &FormatError{Format: "JSON", Err: err}
	}
	return bs, nil
}

// BlocksToJSON serializes blocks back to the editor's native format.
func BlocksToJSON(bs []blocks.Block) (string, error) {
	data, err := json.MarshalIndent(bs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal blocks: %w", err)
	}
	return string(data), nil
}
