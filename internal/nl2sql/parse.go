package nl2sql

import "strings"

// Parsed is the model text split into its two fields. Either may be empty;
// an empty Query means there is nothing to execute.
type Parsed struct {
	Insight string `json:"insight"`
	Query   string `json:"query"`
}

type labelKind int

const (
	labelInsight labelKind = iota
	labelQuery
)

type label struct {
	kind  labelKind
	start int // offset of the label word
	end   int // offset just past the colon
}

var labelWords = []struct {
	word string
	kind labelKind
}{
	{"insight:", labelInsight},
	{"query:", labelQuery},
	{"sql:", labelQuery},
}

type scanState int

const (
	seekingInsight scanState = iota
	inInsight
	done
)

// Parse extracts the insight and the query from raw model text. It never
// fails: missing labels yield empty fields.
//
// The insight is the text between the first INSIGHT: label and the first
// QUERY: or SQL: label after it. The query is everything after the first
// QUERY: or SQL: label anywhere in the text, with markdown fences removed.
func Parse(raw string) Parsed {
	insightStart, insightEnd, queryStart := -1, -1, -1
	state := seekingInsight

	for _, l := range scanLabels(raw) {
		if l.kind == labelQuery && queryStart < 0 {
			queryStart = l.end
		}
		switch state {
		case seekingInsight:
			if l.kind == labelInsight {
				insightStart = l.end
				state = inInsight
			}
		case inInsight:
			if l.kind == labelQuery {
				insightEnd = l.start
				state = done
			}
		}
		if state == done {
			break
		}
	}

	var parsed Parsed
	if insightStart >= 0 && insightEnd >= insightStart {
		parsed.Insight = strings.Trim(raw[insightStart:insightEnd], " \t\r\n*")
	}
	if queryStart >= 0 {
		parsed.Query = StripFences(strings.TrimLeft(raw[queryStart:], "*"))
	}
	return parsed
}

// scanLabels finds every label word that starts a word and is immediately
// followed by a colon, case-insensitively.
func scanLabels(raw string) []label {
	var labels []label
	for i := 0; i < len(raw); i++ {
		if i > 0 && isWordByte(raw[i-1]) {
			continue
		}
		for _, candidate := range labelWords {
			n := len(candidate.word)
			if i+n <= len(raw) && strings.EqualFold(raw[i:i+n], candidate.word) {
				labels = append(labels, label{kind: candidate.kind, start: i, end: i + n})
				i += n - 1
				break
			}
		}
	}
	return labels
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

var fenceLanguages = map[string]struct{}{
	"sql":        {},
	"sqlite":     {},
	"postgres":   {},
	"postgresql": {},
	"duckdb":     {},
}

// StripFences removes a leading markdown code fence (with or without a
// language tag) and everything from the closing fence on.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	body := s[3:]
	tagEnd := strings.IndexAny(body, " \t\r\n")
	if tagEnd < 0 {
		tagEnd = len(body)
	}
	tag := strings.ToLower(body[:tagEnd])
	if _, ok := fenceLanguages[tag]; ok {
		body = body[tagEnd:]
	} else if nl := strings.IndexByte(body, '\n'); nl >= 0 && strings.TrimSpace(body[:nl]) != "" && !strings.Contains(body[:nl], " ") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
