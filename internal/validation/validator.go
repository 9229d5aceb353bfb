// Package validation wraps a shared go-playground/validator instance and the
// content gates applied before anything is written to disk.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/joescharf/portfolio-sync/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes a single failed validation rule.
type FieldError struct {
	Field string // json/mapstructure name when available
	Tag   string
	Param string
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
}

// Error is returned by Struct when one or more rules fail.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed validation.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report the serialized name so messages match the files and config keys users see.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "mapstructure"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
	return validate
}

// Struct validates v against its `validate` tags.
// It returns nil or an *Error listing every failed field.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: namespaceWithoutRoot(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// namespaceWithoutRoot turns "Config.ai.api_key" into "ai.api_key".
func namespaceWithoutRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// IsValidSkills reports whether doc may replace the persisted skills file:
// it must be non-nil with at least one stack and one tool.
func IsValidSkills(doc *models.SkillsDocument) bool {
	if doc == nil {
		return false
	}
	return Struct(doc) == nil
}

// SanitizeProjectAnalysis resets fields holding out-of-range values to their
// zero value so the caller's fallbacks apply. It returns the names of the
// fields that were reset.
func SanitizeProjectAnalysis(a *models.ProjectAnalysis) []string {
	if a == nil {
		return nil
	}
	err := Struct(a)
	if err == nil {
		return nil
	}
	var verr *Error
	if !errors.As(err, &verr) {
		return nil
	}
	var reset []string
	if verr.Has("complexityScore") {
		a.ComplexityScore = 0
		reset = append(reset, "complexityScore")
	}
	if verr.Has("difficulty") {
		a.Difficulty = ""
		reset = append(reset, "difficulty")
	}
	return reset
}
