package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// EachJSONElement walks a top-level JSON array without decoding the
// elements, calling fn with each raw element. A malformed element does not
// stop the walk as long as it is syntactically valid JSON; fn decides what
// to do with it.
func EachJSONElement(ctx context.Context, r io.Reader, fn func(index int, raw json.RawMessage) error) error {
	decoder := json.NewDecoder(r)

	// Expect opening bracket
	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return eris.Wrap(err, "json: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return eris.Errorf("json: expected '[', got %v", tok)
	}

	for i := 0; decoder.More(); i++ {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "json: context cancelled")
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return eris.Wrapf(err, "json: decode element %d", i)
		}
		if err := fn(i, raw); err != nil {
			return err
		}
	}

	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
