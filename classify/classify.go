// Package classify turns a single syslog line into a ParsedRecord by
// scanning the catalog in order and taking the first full, anchored
// match.
package classify

import (
	"fmt"
	"time"

	"github.com/kumina/mailtrace/catalog"
)

// ParsedRecord is the result of classifying one line: the rule that
// matched, its router class, and the named fields captured from it.
type ParsedRecord struct {
	Rule      string
	Router    catalog.Router
	Timestamp time.Time
	PID       string
	Hostname  string
	Fields    map[string]string
	Line      string
}

// UnmatchedLineError reports that no catalog rule matched a line. Per
// the error-handling design this is always fatal to the caller.
type UnmatchedLineError struct {
	Line string
}

func (e *UnmatchedLineError) Error() string {
	return fmt.Sprintf("unmatched line: %q", e.Line)
}

// Classifier holds a compiled catalog. The calendar year used to
// promote syslog's year-less timestamps is passed to each Classify call.
type Classifier struct {
	rules []catalog.Rule
}

// New builds a Classifier over the catalog's default rule table.
func New() *Classifier {
	return &Classifier{rules: catalog.Build()}
}

// Classify scans the catalog in order and returns the first rule that
// fully matches line. year is used to complete the "Mon DD HH:MM:SS"
// timestamp every rule captures as its first field.
func (c *Classifier) Classify(line string, year int) (ParsedRecord, error) {
	for _, rule := range c.rules {
		idx := rule.Pattern.FindStringSubmatchIndex(line)
		if idx == nil {
			continue
		}

		rec := ParsedRecord{
			Rule:   rule.Name,
			Router: rule.Router,
			Fields: make(map[string]string),
			Line:   line,
		}

		for i, name := range rule.Pattern.SubexpNames() {
			// A group that did not take part in the match (an optional
			// ", orig_to=<...>") is left out of Fields, so an absent
			// field stays distinguishable from one captured as "".
			if i == 0 || name == "" || idx[2*i] < 0 {
				continue
			}
			val := line[idx[2*i]:idx[2*i+1]]

			switch name {
			case "timestamp":
				ts, err := parseTimestamp(val, year)
				if err != nil {
					return ParsedRecord{}, fmt.Errorf("rule %s: %w", rule.Name, err)
				}
				rec.Timestamp = ts
			case "PID":
				rec.PID = val
				rec.Fields[name] = val
			case "hostname":
				rec.Hostname = val
				rec.Fields[name] = val
			default:
				rec.Fields[name] = val
			}
		}

		return rec, nil
	}

	return ParsedRecord{}, &UnmatchedLineError{Line: line}
}

func parseTimestamp(s string, year int) (time.Time, error) {
	// syslog's classic timestamp has no year and pads single-digit days
	// with a second space; "_2" in the reference layout absorbs that.
	t, err := time.Parse("Jan _2 15:04:05 2006", fmt.Sprintf("%s %04d", s, year))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
