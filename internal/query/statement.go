package query

import (
	"errors"
	"strings"
)

var (
	ErrEmptyStatement     = errors.New("sql is required")
	ErrMultipleStatements = errors.New("multiple SQL statements are not allowed")
	ErrNotReadOnly        = errors.New("only read-only SELECT/WITH queries are allowed")
)

// PrepareReadOnly normalizes a generated statement and rejects anything that
// is not a single SELECT or WITH statement.
func PrepareReadOnly(sqlText string) (string, error) {
	normalized := StripTrailingSemicolons(sqlText)
	if normalized == "" {
		return "", ErrEmptyStatement
	}
	if hasSemicolonOutsideLiterals(normalized) {
		return "", ErrMultipleStatements
	}
	lowered := strings.ToLower(strings.TrimLeft(normalized, " \t\r\n("))
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return "", ErrNotReadOnly
	}
	return normalized, nil
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func hasSemicolonOutsideLiterals(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		char := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch state {
		case stateNormal:
			switch {
			case char == ';':
				return true
			case char == '\'':
				state = stateSingleQuote
			case char == '"':
				state = stateDoubleQuote
			case char == '-' && next == '-':
				state = stateLineComment
				i++
			case char == '/' && next == '*':
				state = stateBlockComment
				i++
			}
		case stateSingleQuote:
			// '' is an escaped quote inside the literal
			if char == '\'' {
				if next == '\'' {
					i++
				} else {
					state = stateNormal
				}
			}
		case stateDoubleQuote:
			if char == '"' {
				if next == '"' {
					i++
				} else {
					state = stateNormal
				}
			}
		case stateLineComment:
			if char == '\n' {
				state = stateNormal
			}
		case stateBlockComment:
			if char == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}
	return false
}
