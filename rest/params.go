package rest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/quarryhq/quarry"
)

// Request headers the wire protocol uses.
const (
	HeaderApplicationID = "X-Quarry-Application-Id"
	HeaderRESTKey       = "X-Quarry-REST-API-Key"
	HeaderSessionToken  = "X-Quarry-Session-Token"
)

// Wire error codes carried in error envelopes.
const (
	CodeInternal       = 1
	CodeObjectNotFound = 101
	CodeInvalidQuery   = 102
	CodeForbidden      = 119
)

/*
parseParams decodes one request's query values into a parameter mapping.
The where clause arrives JSON-encoded, skip and limit as decimal
integers, everything else as plain strings. The count flag is reported
separately since it selects the operation rather than shaping it.
*/
func parseParams(values map[string]string) (quarry.Params, bool, error) {
	params := make(quarry.Params, len(values))
	count := false

	for key, value := range values {
		switch key {
		case "where":
			var clause map[string]any
			if err := json.Unmarshal([]byte(value), &clause); err != nil {
				return nil, false, fmt.Errorf("malformed where clause: %w", err)
			}
			params[key] = clause

		case "skip", "limit":
			number, err := strconv.Atoi(value)
			if err != nil || number < 0 {
				return nil, false, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
			}
			params[key] = number

		case "order", "include", "keys", "redirectClassNameForKey":
			if value != "" {
				params[key] = value
			}

		case "count":
			count = value == "1" || strings.EqualFold(value, "true")

		default:
			// Unknown keys are ignored.
		}
	}

	return params, count, nil
}

/*
encodeParams renders a parameter mapping as a canonical querystring.
Strings and integers encode directly, the where clause and anything else
structured is JSON-stringified; marshaling maps emits their keys sorted,
so equal mappings always produce equal querystrings.
*/
func encodeParams(params quarry.Params, count bool) (string, error) {
	values := url.Values{}

	for name, value := range params {
		switch value := value.(type) {
		case string:
			values.Set(name, value)
		case int:
			values.Set(name, strconv.Itoa(value))
		case int64:
			values.Set(name, strconv.FormatInt(value, 10))
		default:
			payload, err := json.Marshal(value)
			if err != nil {
				return "", fmt.Errorf("encode %s: %w", name, err)
			}
			values.Set(name, string(payload))
		}
	}

	if count {
		values.Set("count", "1")
	}

	return values.Encode(), nil
}
