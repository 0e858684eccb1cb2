// Package checklist evaluates the fixed screening checklist. The checklist is
// advisory input to the screening decision, never a hard gate: it is recorded
// verbatim so a later reviewer sees exactly what was checked at decision time.
package checklist

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ongbase/be-hiring-workflow/internal/errors"
)

// Item is one checklist entry.
type Item struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Evaluation summarizes a checklist response set.
type Evaluation struct {
	AllChecked   bool `json:"all_checked"`
	CheckedCount int  `json:"checked_count"`
	TotalCount   int  `json:"total_count"`
}

// Engine holds the ordered item set.
type Engine struct {
	items []Item
	byID  map[string]struct{}
}

// Default returns the engine with the built-in screening items.
func Default() *Engine {
	return newEngine([]Item{
		{ID: "minimum_requirements", Label: "Atende aos requisitos mínimos"},
		{ID: "resume_link_valid", Label: "Link do currículo válido"},
		{ID: "salary_expectation_compatible", Label: "Pretensão salarial compatível"},
		{ID: "cultural_fit_plausible", Label: "Fit cultural plausível"},
	})
}

type definitionFile struct {
	Items []Item `yaml:"items"`
}

// LoadFile reads a YAML item definition file.
func LoadFile(path string) (*Engine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read checklist definition")
	}

	var def definitionFile
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "invalid checklist definition")
	}
	if len(def.Items) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "checklist definition has no items")
	}
	for _, item := range def.Items {
		if item.ID == "" {
			return nil, errors.New(errors.ErrCodeInternal, "checklist item without id")
		}
	}
	return newEngine(def.Items), nil
}

func newEngine(items []Item) *Engine {
	byID := make(map[string]struct{}, len(items))
	for _, item := range items {
		byID[item.ID] = struct{}{}
	}
	return &Engine{items: items, byID: byID}
}

// Items returns the ordered item set.
func (e *Engine) Items() []Item {
	out := make([]Item, len(e.items))
	copy(out, e.items)
	return out
}

// Evaluate counts checked items. Responses referring to unknown item ids are
// rejected; missing items count as unchecked.
func (e *Engine) Evaluate(responses map[string]bool) (Evaluation, error) {
	for id := range responses {
		if _, ok := e.byID[id]; !ok {
			return Evaluation{}, errors.InvalidInput("checklist", "unknown checklist item: "+id)
		}
	}

	checked := 0
	for _, item := range e.items {
		if responses[item.ID] {
			checked++
		}
	}
	return Evaluation{
		AllChecked:   checked == len(e.items),
		CheckedCount: checked,
		TotalCount:   len(e.items),
	}, nil
}
