package validator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/edtestlab/exam-engine/internal/models"
)

const maxAnswersPerAttempt = 500

// validSortFields whitelists the columns list endpoints may sort by.
var validSortFields = map[string]bool{
	"":             true,
	"created_at":   true,
	"started_at":   true,
	"submitted_at": true,
	"score":        true,
	"percentage":   true,
	"id":           true,
}

// ValidateProgress checks the shape of a save/submit payload before it
// touches storage. Telemetry fields are deliberately not validated here;
// the service coerces them instead.
func (v *Validator) ValidateProgress(req *models.AttemptProgressRequest) ValidationErrors {
	var errs ValidationErrors

	if len(req.Answers) > maxAnswersPerAttempt {
		errs = append(errs, ValidationError{
			Field:   "answers",
			Message: fmt.Sprintf("cannot contain more than %d entries", maxAnswersPerAttempt),
			Value:   len(req.Answers),
			Rule:    "max",
		})
	}

	for key, raw := range req.Answers {
		if _, err := strconv.ParseUint(key, 10, 32); err != nil {
			errs = append(errs, ValidationError{
				Field:   "answers." + key,
				Message: "key must be a question id",
				Value:   key,
				Rule:    "question_id",
			})
			continue
		}
		if len(raw) > 0 && !json.Valid(raw) {
			errs = append(errs, ValidationError{
				Field:   "answers." + key,
				Message: "value is not valid JSON",
				Rule:    "json",
			})
		}
	}

	return errs
}

// ValidateListParams checks pagination and sorting for list endpoints.
func (v *Validator) ValidateListParams(params *models.ListAttemptsParams) ValidationErrors {
	var errs ValidationErrors

	if verr := v.Validate(params); verr != nil {
		if ve, ok := verr.(ValidationErrors); ok {
			errs = append(errs, ve...)
		}
	}

	if !validSortFields[params.SortBy] {
		errs = append(errs, ValidationError{
			Field:   "sort_by",
			Message: "unsupported sort field",
			Value:   params.SortBy,
			Rule:    "sort_field",
		})
	}

	return errs
}
