package report

import (
	"encoding/json"
	"io"
)

// WriteJSON writes the document as indented JSON.
func WriteJSON(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
