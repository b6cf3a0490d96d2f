package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/quarryhq/quarry"
)

// timestampFormat renders object timestamps the way the store does, UTC
// with millisecond precision.
const timestampFormat = "2006-01-02T15:04:05.000Z"

func printJSON(out io.Writer, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}

// objectDocument flattens a materialized object back into a printable
// document, reserved fields included.
func objectDocument(object *quarry.Object) map[string]any {
	document := map[string]any{"objectId": object.ID()}
	if created := object.CreatedAt(); !created.IsZero() {
		document["createdAt"] = created.UTC().Format(timestampFormat)
	}
	if updated := object.UpdatedAt(); !updated.IsZero() {
		document["updatedAt"] = updated.UTC().Format(timestampFormat)
	}
	for _, key := range object.Keys() {
		if value, ok := object.Get(key); ok {
			document[key] = value
		}
	}
	return document
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	for idx := range parts {
		parts[idx] = strings.TrimSpace(parts[idx])
	}
	return parts
}
