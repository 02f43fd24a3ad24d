// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func candidateValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateCandidate checks the struct-level rules on a candidate: a
// non-blank title and non-negative year and citation count. DOI shape is
// checked separately with ValidDOI because a bad DOI is repairable.
func ValidateCandidate(c Candidate) error {
	c.Title = strings.TrimSpace(c.Title)
	err := candidateValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("invalid candidate: %s", strings.Join(parts, ", "))
}
