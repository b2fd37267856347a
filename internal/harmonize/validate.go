// Package harmonize implements the threshold-driven dataset operators:
// NaN-ratio pruning, similarity-based vertical merge, and categorical row
// selection. Every operator returns a new dataset list and leaves its
// inputs untouched; callers apply the result with workspace.Store.ReplaceAll.
package harmonize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateParams checks struct tags on a parameter struct and turns the
// first failure into a *core.ParamError.
func validateParams(params any) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &core.ParamError{Param: "params", Reason: err.Error()}
	}
	fe := verrs[0]
	return &core.ParamError{Param: paramName(fe), Reason: reason(fe)}
}

func paramName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "required":
		return "must not be empty"
	case "gte":
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be > %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
