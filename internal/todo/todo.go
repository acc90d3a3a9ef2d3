package todo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type Status string

const StatusPending Status = "pending"

// DefaultHours is used when an item carries no estimate.
const DefaultHours = 2.0

// Record is one actionable task parsed from the TODO document.
type Record struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Phase          string   `json:"phase"`
	Status         Status   `json:"status"`
	Priority       Priority `json:"priority"`
	EstimatedHours float64  `json:"estimatedHours"`
	Dependencies   []string `json:"dependencies"`
}

var (
	phaseRe  = regexp.MustCompile(`(?i)^phase\s*(\d+)`)
	hoursRe  = regexp.MustCompile(`(?i)\((\d+(?:\.\d+)?)\s*(?:시간|hours?|hrs?|h)\)`)
	parensRe = regexp.MustCompile(`\(.*?\)`)
	spacesRe = regexp.MustCompile(`\s{2,}`)
)

func recordID(n int) string { return fmt.Sprintf("TODO-%03d", n) }

// phaseNumber returns the number of a "Phase N..." heading, or 0.
func phaseNumber(heading string) int {
	m := phaseRe.FindStringSubmatch(strings.TrimSpace(heading))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func estimateHours(raw string) float64 {
	m := hoursRe.FindStringSubmatch(raw)
	if m == nil {
		return DefaultHours
	}
	h, err := strconv.ParseFloat(m[1], 64)
	if err != nil || h <= 0 {
		return DefaultHours
	}
	return h
}

func priorityFor(raw string, phase int) Priority {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "critical") || phase == 1:
		return PriorityCritical
	case strings.Contains(lower, "high") || phase == 2:
		return PriorityHigh
	case strings.Contains(lower, "low"):
		return PriorityLow
	}
	return PriorityMedium
}

func cleanTitle(raw string) string {
	t := parensRe.ReplaceAllString(raw, "")
	return strings.TrimSpace(spacesRe.ReplaceAllString(t, " "))
}

func newRecord(n int, phase string, phaseNum int, raw string) Record {
	raw = strings.TrimSpace(raw)
	return Record{
		ID:             recordID(n),
		Title:          cleanTitle(raw),
		Description:    phase + ": " + raw,
		Phase:          phase,
		Status:         StatusPending,
		Priority:       priorityFor(raw, phaseNum),
		EstimatedHours: estimateHours(raw),
		Dependencies:   []string{},
	}
}

var defaultPhases = []struct {
	name  string
	items []string
}{
	{"Phase 1: Project setup", []string{"Initialize the project", "Base configuration", "Install dependencies"}},
	{"Phase 2: Core features", []string{"Implement the main feature", "Build the UI", "Integrate the API"}},
	{"Phase 3: Test and deploy", []string{"Write tests", "Fix bugs", "Deploy"}},
}

// Default is the three-phase skeleton used when nothing can be parsed.
func Default() []Record {
	out := make([]Record, 0, 9)
	n := 1
	for i, p := range defaultPhases {
		prio := PriorityHigh
		if i == 0 {
			prio = PriorityCritical
		}
		for _, item := range p.items {
			out = append(out, Record{
				ID:             recordID(n),
				Title:          item,
				Description:    p.name + ": " + item,
				Phase:          p.name,
				Status:         StatusPending,
				Priority:       prio,
				EstimatedHours: DefaultHours,
				Dependencies:   []string{},
			})
			n++
		}
	}
	return out
}

// Extract parses content and falls back to Default when it yields nothing.
// It never returns an empty list.
func Extract(content string) []Record {
	if strings.TrimSpace(content) == "" {
		return Default()
	}
	recs := Parse(content)
	if len(recs) == 0 {
		return Default()
	}
	return recs
}
