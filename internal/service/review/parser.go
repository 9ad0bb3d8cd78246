package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aimd54/component-directory/internal/models"
)

const (
	summaryMarker   = "SUMMARY:"
	criterionMarker = "CRITERION:"
)

// Verdict is a parsed AI review.
type Verdict struct {
	Summary  string
	Criteria []models.ReviewCriterion
	Status   string
}

// ParseError is returned when model output does not follow the verdict grammar.
type ParseError struct {
	Line   int // 1-based; 0 when the problem is not tied to a line
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid review verdict: line %d: %s", e.Line, e.Reason)
	}
	return "invalid review verdict: " + e.Reason
}

// ParseVerdict extracts a verdict from model output. Lines are either
//
//	SUMMARY: <text>
//	CRITERION: <key> | PASS|FAIL | <notes>
//
// optionally bulleted, inside or outside a code fence. Everything else is ignored. Any
// malformed marker line, unknown or repeated key, or missing critical criterion is an
// error; a verdict is never inferred.
func ParseVerdict(text string, rubric *Rubric) (*Verdict, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "response is empty"}
	}

	verdict := &Verdict{}
	seenSummary := false
	seen := map[string]int{}

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "- "), "* "))

		switch {
		case hasMarker(line, summaryMarker):
			if seenSummary {
				return nil, &ParseError{Line: lineNo, Reason: "more than one SUMMARY line"}
			}
			seenSummary = true
			verdict.Summary = strings.TrimSpace(line[len(summaryMarker):])

		case hasMarker(line, criterionMarker):
			c, err := parseCriterion(line[len(criterionMarker):], rubric)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Reason: err.Error()}
			}
			if prev, dup := seen[c.Name]; dup {
				return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("criterion %q already given on line %d", c.Name, prev)}
			}
			seen[c.Name] = lineNo
			verdict.Criteria = append(verdict.Criteria, c)
		}
	}

	if len(verdict.Criteria) == 0 {
		return nil, &ParseError{Reason: "no CRITERION lines found"}
	}

	var missing []string
	for _, key := range rubric.CriticalKeys() {
		if _, ok := seen[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Reason: "missing critical criteria: " + strings.Join(missing, ", ")}
	}

	sort.SliceStable(verdict.Criteria, func(a, b int) bool {
		return rubric.Position(verdict.Criteria[a].Name) < rubric.Position(verdict.Criteria[b].Name)
	})
	verdict.Status = DeriveStatus(verdict.Criteria, rubric)

	return verdict, nil
}

func hasMarker(line, marker string) bool {
	return len(line) >= len(marker) && strings.EqualFold(line[:len(marker)], marker)
}

func parseCriterion(rest string, rubric *Rubric) (models.ReviewCriterion, error) {
	fields := strings.SplitN(rest, "|", 3)
	if len(fields) != 3 {
		return models.ReviewCriterion{}, fmt.Errorf("CRITERION needs 3 fields separated by '|', got %d", len(fields))
	}

	key := strings.ToLower(strings.TrimSpace(fields[0]))
	if key == "" {
		return models.ReviewCriterion{}, fmt.Errorf("CRITERION has no key")
	}
	if _, ok := rubric.Lookup(key); !ok {
		return models.ReviewCriterion{}, fmt.Errorf("unknown criterion %q", key)
	}

	var passed bool
	switch marker := strings.ToUpper(strings.TrimSpace(fields[1])); marker {
	case "PASS":
		passed = true
	case "FAIL":
		passed = false
	default:
		return models.ReviewCriterion{}, fmt.Errorf("criterion %q has result %q, want PASS or FAIL", key, marker)
	}

	return models.ReviewCriterion{
		Name:   key,
		Passed: passed,
		Notes:  strings.TrimSpace(fields[2]),
	}, nil
}

// DeriveStatus computes the overall AI review status from criteria alone: any critical
// failure is failed, all passing is passed, anything else is partial. Names not in the
// rubric count as non-critical.
func DeriveStatus(criteria []models.ReviewCriterion, rubric *Rubric) string {
	allPassed := true
	for _, c := range criteria {
		if c.Passed {
			continue
		}
		allPassed = false
		if rc, ok := rubric.Lookup(c.Name); ok && rc.Critical {
			return models.AIReviewFailed
		}
	}
	if allPassed {
		return models.AIReviewPassed
	}
	return models.AIReviewPartial
}
