package ensemble

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Parse converts one backend's raw reply into a canonical Decision. Replies
// arrive in three shapes, tried in priority order with first match winning:
//
//  1. strict JSON: a single object, possibly wrapped in prose or a markdown
//     code fence, with trailing commas tolerated
//  2. labeled structured text: "**Direction:** LONG" / "DIRECTION: LONG"
//     style lines with an optional "### Notes" or "---" delimited tail
//  3. unstructured prose: direction and confidence inferred from token scan
//
// Parse is pure and total: malformed input never errors, it degrades to the
// nearest valid Decision, defaulting toward IGNORE.
func Parse(raw string) Decision {
	trimmed := strings.TrimSpace(raw)

	if d := parseJSON(trimmed); d != nil {
		return finalize(*d, trimmed)
	}
	if d := parseLabeled(trimmed); d != nil {
		return finalize(*d, trimmed)
	}
	return finalize(parseProse(trimmed), trimmed)
}

// finalize enforces the Decision invariants regardless of which strategy
// produced it: IGNORE carries no trade levels, and notes is a bounded,
// whitespace-normalized, non-empty string.
func finalize(d Decision, raw string) Decision {
	if d.Direction != DirectionLong && d.Direction != DirectionShort {
		d.Direction = DirectionIgnore
	}
	switch d.Confidence {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
	default:
		d.Confidence = ConfidenceLow
	}
	if d.Direction == DirectionIgnore {
		d.Entry, d.Stop, d.TP1, d.TP2 = nil, nil, nil, nil
	}
	d.Notes = truncateNotes(d.Notes)
	if d.Notes == "" {
		d.Notes = truncateNotes(raw)
	}
	if d.Notes == "" {
		d.Notes = "no analysis provided"
	}
	return d
}

// ----------------------------------------------------------------------------
// Strategy 1: strict JSON
// ----------------------------------------------------------------------------

var (
	codeFenceRe     = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// stripMarkdownCodeBlock removes ```json fences that models wrap JSON in.
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)
	if matches := codeFenceRe.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return response
}

// extractJSONObject returns the first balanced {...} span, skipping brace
// characters inside string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func parseJSON(raw string) *Decision {
	span, ok := extractJSONObject(stripMarkdownCodeBlock(raw))
	if !ok {
		return nil
	}
	span = trailingCommaRe.ReplaceAllString(span, "$1")

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil
	}

	d := Decision{Direction: DirectionIgnore, Confidence: ConfidenceLow}
	if s, ok := fields["direction"].(string); ok {
		if dir, ok := ParseDirection(s); ok {
			d.Direction = dir
		}
	}
	if s, ok := fields["confidence"].(string); ok {
		if conf, ok := ParseConfidence(s); ok {
			d.Confidence = conf
		}
	}
	d.Entry = numericValue(fields["entry"])
	d.Stop = numericValue(fields["stop"])
	d.TP1 = numericValue(fields["tp1"])
	d.TP2 = numericValue(fields["tp2"])
	d.SingleOption = textValue(fields["single_option"])
	d.VerticalSpread = textValue(fields["vertical_spread"])
	if s, ok := fields["notes"].(string); ok {
		d.Notes = s
	} else if s, ok := fields["reasoning"].(string); ok {
		d.Notes = s
	}
	return &d
}

// ----------------------------------------------------------------------------
// Strategy 2: labeled structured text
// ----------------------------------------------------------------------------

var (
	labeledLineRe = regexp.MustCompile(`(?i)^\s*(direction|decision|confidence|entry|stop|tp1|tp2|single[ _]option|vertical[ _]spread)\s*:\s*(.+?)\s*$`)
	notesTailRe   = regexp.MustCompile(`(?is)\b(?:reasoning|notes)\s*:\s*(.+)$`)
	notesBlockRe  = regexp.MustCompile(`(?s)(?:###\s*Notes:?|\n-{3,}\n)\s*(.+)$`)

	directionTokenRe  = regexp.MustCompile(`(?i)\b(long|short|ignore)\b`)
	confidenceTokenRe = regexp.MustCompile(`(?i)\b(low|medium|high)\b`)
)

func parseLabeled(raw string) *Decision {
	d := Decision{Direction: DirectionIgnore, Confidence: ConfidenceLow}
	matched := false

	for _, line := range strings.Split(raw, "\n") {
		// Markdown bold labels ("**Direction:** LONG") carry the colon inside
		// the emphasis markers; dropping the asterisks makes both the markdown
		// and the plain "DIRECTION: LONG" form parse the same way.
		plain := strings.ReplaceAll(line, "*", "")
		m := labeledLineRe.FindStringSubmatch(plain)
		if m == nil {
			continue
		}
		matched = true
		value := strings.TrimSpace(m[2])

		switch strings.ReplaceAll(strings.ToLower(m[1]), " ", "_") {
		case "direction", "decision":
			if tok := directionTokenRe.FindString(value); tok != "" {
				d.Direction, _ = ParseDirection(tok)
			}
		case "confidence":
			if tok := confidenceTokenRe.FindString(value); tok != "" {
				d.Confidence, _ = ParseConfidence(tok)
			}
		case "entry":
			d.Entry = parseLevel(value)
		case "stop":
			d.Stop = parseLevel(value)
		case "tp1":
			d.TP1 = parseLevel(value)
		case "tp2":
			d.TP2 = parseLevel(value)
		case "single_option":
			d.SingleOption = emptyIfAbsent(value)
		case "vertical_spread":
			d.VerticalSpread = emptyIfAbsent(value)
		}
	}
	if !matched {
		return nil
	}

	plain := strings.ReplaceAll(raw, "*", "")
	if m := notesTailRe.FindStringSubmatch(plain); m != nil {
		d.Notes = m[1]
	} else if m := notesBlockRe.FindStringSubmatch(raw); m != nil {
		d.Notes = strings.ReplaceAll(m[1], "*", "")
	}
	return &d
}

// ----------------------------------------------------------------------------
// Strategy 3: unstructured prose
// ----------------------------------------------------------------------------

var (
	longTokenRe   = regexp.MustCompile(`(?i)\blong\b`)
	shortTokenRe  = regexp.MustCompile(`(?i)\bshort\b`)
	highPhraseRe  = regexp.MustCompile(`(?i)\bhigh\s+confidence\b`)
	medPhraseRe   = regexp.MustCompile(`(?i)\bmedium\s+confidence\b`)
)

func parseProse(raw string) Decision {
	d := Decision{Direction: DirectionIgnore, Confidence: ConfidenceLow, Notes: raw}

	hasLong := longTokenRe.MatchString(raw)
	hasShort := shortTokenRe.MatchString(raw)
	// Both or neither is ambiguous, which resolves to no trade.
	if hasLong && !hasShort {
		d.Direction = DirectionLong
	} else if hasShort && !hasLong {
		d.Direction = DirectionShort
	}

	if highPhraseRe.MatchString(raw) {
		d.Confidence = ConfidenceHigh
	} else if medPhraseRe.MatchString(raw) {
		d.Confidence = ConfidenceMedium
	}
	return d
}

// ----------------------------------------------------------------------------
// Value coercion helpers
// ----------------------------------------------------------------------------

func isAbsentToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "none", "null", "nil", "-":
		return true
	default:
		return false
	}
}

// parseLevel converts a price-level string to a float pointer, tolerating
// currency symbols, thousands separators, percent signs and absent markers.
func parseLevel(s string) *float64 {
	if isAbsentToken(s) {
		return nil
	}
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "").Replace(strings.TrimSpace(s))
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// numericValue coerces a decoded JSON value (number, numeric string or absent
// marker) to a float pointer.
func numericValue(v interface{}) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		return parseLevel(val)
	default:
		return nil
	}
}

// textValue extracts a short free-text field, mapping absent markers to "".
func textValue(v interface{}) string {
	s, ok := v.(string)
	if !ok || isAbsentToken(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

func emptyIfAbsent(s string) string {
	if isAbsentToken(s) {
		return ""
	}
	return s
}
