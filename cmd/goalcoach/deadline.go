package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const dateLayout = "2006-01-02"

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseDeadline reads a deadline given as a date or in words ("next
// friday", "in 2 weeks"), relative to now. Blank input means no deadline.
func parseDeadline(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, now.Location()); err == nil {
		return &t, nil
	}

	r, err := parser.Parse(s, now)
	if err != nil {
		return nil, fmt.Errorf("failed to parse deadline %q: %w", s, err)
	}
	if r == nil {
		return nil, fmt.Errorf("unrecognized deadline %q (use %s or words like \"next friday\")", s, dateLayout)
	}
	t := r.Time
	return &t, nil
}

// parseCategory accepts a category key in any case, or a unique prefix of
// one ("phys" for PHYSICAL WELLBEING).
func parseCategory(s string) (model.Category, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if key == "" {
		return model.CategoryEducation, nil
	}

	var match []model.Category
	for _, c := range model.Categories() {
		if string(c) == key {
			return c, nil
		}
		if strings.HasPrefix(string(c), key) {
			match = append(match, c)
		}
	}
	if len(match) == 1 {
		return match[0], nil
	}
	return "", fmt.Errorf("%w: unknown category %q (one of %s)", model.ErrInvalid, s, categoryList())
}

func categoryList() string {
	keys := make([]string, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		keys = append(keys, strings.ToLower(string(c)))
	}
	return strings.Join(keys, ", ")
}
