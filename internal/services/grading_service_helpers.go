package services

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ===== ANSWER NORMALIZATION =====

// questionKey renders a question id the way the answers map keys it.
func questionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeJSON(raw json.RawMessage) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// normScalar folds a decoded JSON scalar into a canonical comparison string:
// numbers (and numeric strings) compare numerically, everything else as a
// trimmed, lowercased string.
func normScalar(v interface{}) (string, bool) {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil && s != "" {
			return strconv.FormatFloat(f, 'g', -1, 64), true
		}
		return strings.ToLower(s), true
	default:
		return "", false
	}
}

func scalarsEqual(a, b interface{}) bool {
	na, oka := normScalar(a)
	nb, okb := normScalar(b)
	return oka && okb && na == nb
}

// coerceBool maps the accepted truthy/falsy spellings onto a bool.
func coerceBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		if t == 1 {
			return true, true
		}
		if t == 0 {
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

func normSet(items []interface{}) (map[string]bool, bool) {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		n, ok := normScalar(item)
		if !ok {
			return nil, false
		}
		set[n] = true
	}
	return set, true
}

// ===== QUESTION TYPE GRADERS =====

func gradeScalar(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	s, oks := decodeJSON(submitted)
	return okc && oks && scalarsEqual(c, s)
}

// gradeSet compares the two selections as sets; order is irrelevant, but the
// raw lengths must match, so a duplicated selection does not pass.
func gradeSet(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	s, oks := decodeJSON(submitted)
	if !okc || !oks {
		return false
	}

	cItems, okc := c.([]interface{})
	sItems, oks := s.([]interface{})
	if !okc || !oks || len(cItems) != len(sItems) {
		return false
	}

	cSet, okc := normSet(cItems)
	sSet, oks := normSet(sItems)
	if !okc || !oks || len(cSet) != len(sSet) {
		return false
	}
	for n := range cSet {
		if !sSet[n] {
			return false
		}
	}
	return true
}

func gradeTrueFalse(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	s, oks := decodeJSON(submitted)
	if !okc || !oks {
		return false
	}

	cBool, okc := coerceBool(c)
	sBool, oks := coerceBool(s)
	return okc && oks && cBool == sBool
}

// gradeAnyOf accepts the submission if it matches any of the accepted
// answers; a scalar correct answer degenerates to plain equality.
func gradeAnyOf(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	s, oks := decodeJSON(submitted)
	if !okc || !oks {
		return false
	}

	if accepted, ok := c.([]interface{}); ok {
		for _, a := range accepted {
			if scalarsEqual(a, s) {
				return true
			}
		}
		return false
	}
	return scalarsEqual(c, s)
}

// gradeSequence requires the same elements in the same positions.
func gradeSequence(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	s, oks := decodeJSON(submitted)
	if !okc || !oks {
		return false
	}

	cItems, okc := c.([]interface{})
	sItems, oks := s.([]interface{})
	if !okc || !oks || len(cItems) != len(sItems) {
		return false
	}
	for i := range cItems {
		if !scalarsEqual(cItems[i], sItems[i]) {
			return false
		}
	}
	return true
}

// gradeMatching handles both stored shapes: an array compares positionally,
// an object compares pair-by-pair over the same key set.
func gradeMatching(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	if !okc {
		return false
	}

	if _, isArray := c.([]interface{}); isArray {
		return gradeSequence(correct, submitted)
	}

	cPairs, okc := c.(map[string]interface{})
	if !okc {
		return false
	}
	s, oks := decodeJSON(submitted)
	if !oks {
		return false
	}
	sPairs, oks := s.(map[string]interface{})
	if !oks || len(cPairs) != len(sPairs) {
		return false
	}

	for key, want := range cPairs {
		got, exists := sPairs[key]
		if !exists || !scalarsEqual(want, got) {
			return false
		}
	}
	return true
}

// gradeFillBlanks checks every blank in position; a blank's accepted value
// may itself be a list of alternatives.
func gradeFillBlanks(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	s, oks := decodeJSON(submitted)
	if !okc || !oks {
		return false
	}

	blanks, okc := c.([]interface{})
	filled, oks := s.([]interface{})
	if !okc || !oks || len(blanks) != len(filled) {
		return false
	}

	for i, blank := range blanks {
		if alternatives, ok := blank.([]interface{}); ok {
			matched := false
			for _, alt := range alternatives {
				if scalarsEqual(alt, filled[i]) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !scalarsEqual(blank, filled[i]) {
			return false
		}
	}
	return true
}

// gradeImageBased dispatches on the stored answer shape: hotspot-style
// questions store an array of accepted regions, label-style questions a
// single value.
func gradeImageBased(correct, submitted json.RawMessage) bool {
	c, okc := decodeJSON(correct)
	if !okc {
		return false
	}
	if _, isArray := c.([]interface{}); isArray {
		return gradeSet(correct, submitted)
	}
	return gradeScalar(correct, submitted)
}
