package runner

import (
	"fmt"

	"github.com/sitecrew/nudges/internal/logger"
	"github.com/sitecrew/nudges/nudge"
)

// subjectID is the record a result is about: its candidate, else its
// project, else its client. Empty when the result names none.
func subjectID(res nudge.Result) string {
	for _, id := range []*string{res.RelatedCandidateID, res.RelatedProjectID, res.RelatedClientID} {
		if id != nil && *id != "" {
			return *id
		}
	}
	return ""
}

// uniqueTitles makes titles unique within one run, since the title is the
// upsert key. Results sharing a title and a subject collapse to the most
// urgent one, the earliest generator winning ties. When a title is still
// shared by different subjects (two workers called John Smith), each gets
// its subject ID appended. Output keeps generator order.
func uniqueTitles(results []nudge.Result, report *Report) []nudge.Result {
	type key struct{ title, subject string }

	best := make(map[key]int, len(results))
	subjects := make(map[string][]string)
	for i, res := range results {
		k := key{res.Title, subjectID(res)}
		j, seen := best[k]
		if !seen {
			best[k] = i
			subjects[res.Title] = append(subjects[res.Title], k.subject)
			continue
		}
		if res.Priority > results[j].Priority {
			best[k] = i
		}
	}

	out := make([]nudge.Result, 0, len(best))
	for i, res := range results {
		k := key{res.Title, subjectID(res)}
		if best[k] != i {
			logger.Warn("dropped duplicate nudge", "title", res.Title, "subject", k.subject, "priority", res.Priority.String())
			report.logf("dropped duplicate %s %q for %q", res.Priority, res.Title, k.subject)
			continue
		}
		if len(subjects[res.Title]) > 1 && k.subject != "" {
			res.Title = fmt.Sprintf("%s (%s)", res.Title, k.subject)
			report.logf("title %q is shared by %d records, using %q", k.title, len(subjects[k.title]), res.Title)
		}
		out = append(out, res)
	}
	return out
}
