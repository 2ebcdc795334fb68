package analyze

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// lineFlattener turns every line break into a space. A backslash directly
// before a break (a line continuation, invalid as a JSON escape) goes with it.
var lineFlattener = strings.NewReplacer(
	"\\\r\n", " ", "\\\n", " ", "\\\r", " ",
	"\r\n", " ", "\n", " ", "\r", " ",
)

var requiredKeys = []string{"title", "summary", "tags", "category"}

// ParseResponse turns a raw completion into a Result. It tolerates commentary
// around the JSON object, a surrounding code fence and raw control characters
// inside string values; a reply that still fails to decode is retried once with
// its line breaks flattened to spaces.
func ParseResponse(raw string) (*Result, error) {
	text := stripCodeBlock(raw)

	span := jsonObjectRe.FindString(text)
	if span == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}

	fields, err := decodeLenient(span)
	if err != nil {
		fields, err = decodeLenient(lineFlattener.Replace(span))
		if err != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
		}
	}
	return resultFromFields(fields)
}

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func decodeLenient(s string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(escapeControlChars(s)), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// escapeControlChars rewrites raw control characters that appear inside JSON
// string literals as escape sequences. Bytes outside strings are untouched.
func escapeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case !inString:
			if c == '"' {
				inString = true
			}
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = false
		case c < 0x20:
			switch c {
			case '\n':
				sb.WriteString(`\n`)
			case '\r':
				sb.WriteString(`\r`)
			case '\t':
				sb.WriteString(`\t`)
			default:
				fmt.Fprintf(&sb, `\u%04x`, c)
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func resultFromFields(fields map[string]json.RawMessage) (*Result, error) {
	for _, key := range requiredKeys {
		v, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing key %q", ErrInvalidResponse, key)
		}
		if strings.TrimSpace(string(v)) == "null" {
			return nil, fmt.Errorf("%w: key %q is null", ErrInvalidResponse, key)
		}
	}

	var res Result
	if err := json.Unmarshal(fields["title"], &res.Title); err != nil {
		return nil, fmt.Errorf("%w: title: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(fields["summary"], &res.Summary); err != nil {
		return nil, fmt.Errorf("%w: summary: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(fields["tags"], &res.Tags); err != nil {
		return nil, fmt.Errorf("%w: tags: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(fields["category"], &res.Category); err != nil {
		return nil, fmt.Errorf("%w: category: %v", ErrInvalidResponse, err)
	}

	res.Title = strings.TrimSpace(res.Title)
	res.Summary = strings.TrimSpace(res.Summary)
	if res.Title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidResponse)
	}
	if res.Summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrInvalidResponse)
	}

	category, ok := canonicalCategory(res.Category)
	if !ok {
		return nil, fmt.Errorf("%w: category %q not in %v", ErrInvalidResponse, res.Category, Categories)
	}
	res.Category = category

	tags := res.Tags[:0]
	for _, t := range res.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	res.Tags = tags
	return &res, nil
}

// canonicalCategory matches c against Categories ignoring case and
// surrounding space.
func canonicalCategory(c string) (string, bool) {
	c = strings.TrimSpace(c)
	for _, known := range Categories {
		if strings.EqualFold(c, known) {
			return known, true
		}
	}
	return "", false
}
