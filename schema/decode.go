package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decode validates args against s and decodes the defaulted result into T.
// A nil schema skips validation.
func Decode[T any](s *Schema, args map[string]any) (T, error) {
	var out T
	if s != nil {
		validated, err := s.Validate(args)
		if err != nil {
			return out, err
		}
		args = validated
	}

	data, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("schema: encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var terr *json.UnmarshalTypeError
		if errors.As(err, &terr) && terr.Field != "" {
			// Values that pass the JSON type check but not the Go one,
			// such as -1 for a uint8.
			return out, ValidationErrors{{
				Path:    terr.Field,
				Kind:    KindType,
				Message: fmt.Sprintf("%s does not fit %s", terr.Value, terr.Type.Kind()),
			}}
		}
		return out, fmt.Errorf("schema: decode arguments: %w", err)
	}
	return out, nil
}
