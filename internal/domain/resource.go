package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MaxFieldLength bounds name and description, matching a VARCHAR(255) column.
const MaxFieldLength = 255

// Resource is the single entity managed by the API.
type Resource struct {
	ID          int64
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var lengthRule = fmt.Sprintf("max=%d", MaxFieldLength)

// ResourceInput carries the client-settable fields of a new Resource.
type ResourceInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// Validate checks the input against the schema rules.
func (in ResourceInput) Validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	return validateDescription(in.Description)
}

// Optional tracks whether a JSON field was present in a request body.
// A present null leaves Value nil.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a present Optional holding null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// ResourcePatch is a partial update. Only fields with Set are written;
// id and timestamps are never accepted from clients.
type ResourcePatch struct {
	Name        Optional[string]
	Description Optional[string]
}

// Validate rejects a null or blank name and oversize values.
func (p ResourcePatch) Validate() error {
	if p.Name.Set {
		if p.Name.Value == nil {
			return &ValidationError{Field: "name", Message: "cannot be null"}
		}
		if err := validateName(*p.Name.Value); err != nil {
			return err
		}
	}
	if p.Description.Set {
		return validateDescription(p.Description.Value)
	}
	return nil
}

// validateName rejects empty, whitespace-only and oversize names.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if err := validate.Var(name, lengthRule); err != nil {
		return withField(fromValidator(err), "name")
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc == nil {
		return nil
	}
	if err := validate.Var(*desc, lengthRule); err != nil {
		return withField(fromValidator(err), "description")
	}
	return nil
}

// UnmarshalJSON records which fields the body carried so that absent fields
// are left untouched by the update. Unknown keys, id and timestamps are ignored.
func (p *ResourcePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return &ValidationError{Message: "request body must be a JSON object"}
	}

	var err error
	if p.Name, err = decodeOptional[string](raw, "name"); err != nil {
		return err
	}
	if p.Description, err = decodeOptional[string](raw, "description"); err != nil {
		return err
	}
	return nil
}

func decodeOptional[T any](raw map[string]json.RawMessage, key string) (Optional[T], error) {
	msg, ok := raw[key]
	if !ok {
		return Optional[T]{}, nil
	}
	if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
		return Null[T](), nil
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return Optional[T]{}, InvalidValue(key)
	}
	return Some(v), nil
}

func withField(err error, field string) error {
	if ve, ok := err.(*ValidationError); ok && ve.Field == "" {
		ve.Field = field
	}
	return err
}
