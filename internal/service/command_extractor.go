package service

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/mansoorceksport/nutritico/internal/domain"
)

const (
	planUpdateMarker  = "[PLAN_UPDATE:"
	actionTakenMarker = "[ACTION_TAKEN:"
)

// commandArrayPattern is the second-pass search for an array of objects
// inside a payload that failed strict parsing
var commandArrayPattern = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)

// Extraction is the result of scanning one model response
type Extraction struct {
	CleanText     string
	Commands      []domain.PlanCommand
	ActionSummary string
	// Dropped counts payload elements rejected by validation
	Dropped int
}

type span struct {
	start, end int // text[start:end] is the whole marker
	payload    string
}

// ExtractPlanCommands finds every [PLAN_UPDATE: ...] block in text, parses the
// commands it carries and returns the text with the blocks removed.
// It never fails: unreadable payloads yield no commands.
func ExtractPlanCommands(text string) Extraction {
	blocks := findBlocks(text, planUpdateMarker, scanBalanced)
	actions := findBlocks(text, actionTakenMarker, scanFlat)

	var result Extraction
	for _, b := range blocks {
		elems := parsePayload(b.payload)
		for _, raw := range elems {
			cmd, err := decodeCommand(raw)
			if err != nil {
				result.Dropped++
				continue
			}
			result.Commands = append(result.Commands, cmd)
		}
	}

	result.CleanText = strings.TrimSpace(removeSpans(text, append(blocks, actions...)))

	if len(result.Commands) > 0 {
		result.ActionSummary = fmt.Sprintf("%d ajustes aplicados al plan", len(result.Commands))
	} else if len(actions) > 0 {
		result.ActionSummary = strings.TrimSpace(actions[0].payload)
	}
	return result
}

// findBlocks locates non-overlapping markers. scan returns the index of the
// closing ']' or -1 when the block is never closed.
func findBlocks(text, marker string, scan func(text string, from int) int) []span {
	var out []span
	pos := 0
	for {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			return out
		}
		start := pos + idx
		bodyStart := start + len(marker)
		end, payloadEnd := len(text), len(text)
		if closing := scan(text, bodyStart); closing >= 0 {
			end, payloadEnd = closing+1, closing
		}
		out = append(out, span{start: start, end: end, payload: text[bodyStart:payloadEnd]})
		pos = end
	}
}

// scanBalanced walks from the marker body to the ']' that closes the marker's
// own '['. Brackets and braces nest; characters inside JSON strings are skipped.
func scanBalanced(text string, from int) int {
	depth := 1
	inString := false
	escaped := false
	for i := from; i < len(text); i++ {
		c := text[i]
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
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// scanFlat stops at the first ']'
func scanFlat(text string, from int) int {
	if i := strings.IndexByte(text[from:], ']'); i >= 0 {
		return from + i
	}
	return -1
}

func removeSpans(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	// spans from the two scans may interleave; drop any covered region once
	covered := make([]bool, len(text))
	for _, s := range spans {
		for i := s.start; i < s.end; i++ {
			covered[i] = true
		}
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if !covered[i] {
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

// sanitizePayload strips code fences and line breaks models add around JSON
func sanitizePayload(payload string) string {
	payload = strings.ReplaceAll(payload, "```json", "")
	payload = strings.ReplaceAll(payload, "```", "")
	payload = strings.ReplaceAll(payload, "\r", " ")
	payload = strings.ReplaceAll(payload, "\n", " ")
	return strings.TrimSpace(payload)
}

// parsePayload returns the raw command elements of a payload: a strict parse
// first, then the first array-of-objects substring
func parsePayload(payload string) []json.RawMessage {
	clean := sanitizePayload(payload)
	if elems, ok := parseCommandJSON(clean); ok {
		return elems
	}
	if m := commandArrayPattern.FindString(clean); m != "" {
		if elems, ok := parseCommandJSON(m); ok {
			return elems
		}
	}
	return nil
}

func parseCommandJSON(s string) ([]json.RawMessage, bool) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return []json.RawMessage{raw}, true
	case strings.HasPrefix(trimmed, "["):
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, false
		}
		return elems, true
	default:
		return nil, false
	}
}

// decodeCommand validates one element: integral dayIndex in range, non-empty
// meal, group and itemId, numeric qty. Unknown fields are ignored.
func decodeCommand(raw json.RawMessage) (domain.PlanCommand, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.PlanCommand{}, fmt.Errorf("command is not an object: %w", err)
	}

	day, ok := fields["dayIndex"].(float64)
	if !ok || day != math.Trunc(day) || !domain.ValidDay(int(day)) {
		return domain.PlanCommand{}, fmt.Errorf("invalid dayIndex %v", fields["dayIndex"])
	}
	qty, ok := fields["qty"].(float64)
	if !ok {
		return domain.PlanCommand{}, fmt.Errorf("invalid qty %v", fields["qty"])
	}

	cmd := domain.PlanCommand{DayIndex: int(day), Qty: qty}
	for key, dst := range map[string]*string{"meal": &cmd.Meal, "group": &cmd.Group, "itemId": &cmd.ItemID} {
		if v, ok := fields[key].(string); ok {
			*dst = v
		}
	}
	if err := cmd.Validate(); err != nil {
		return domain.PlanCommand{}, err
	}
	return cmd, nil
}
