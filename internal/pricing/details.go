package pricing

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Details is the scope of work for one project. Each project has its own
// variant carrying only the fields that apply to it, so a detail entered
// for one project can never leak into another project's estimate.
type Details interface {
	// Project names the variant.
	Project() Project
	// Fields renders the variant back into its wire form, omitting unset values.
	Fields() map[string]string

	estimate() Bands
}

// FieldErrors maps a detail key to the reason it was rejected.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid details: " + strings.Join(parts, "; ")
}

// Empty returns the variant for a freshly selected project with nothing entered.
func Empty(p Project) (Details, error) {
	return ParseDetails(p, nil)
}

// Upper bounds on quantities. Larger inputs are rejected rather than
// priced so every band stays finite.
const (
	MaxSquareFeet  = 100000
	MaxWindowCount = 500
)

// ParseDetails converts the wire-level detail bag for project p into its
// variant. Blank values are treated as not supplied.
func ParseDetails(p Project, fields map[string]string) (Details, error) {
	ps := newDetailParser(fields)
	d, err := ps.parse(p)
	if err != nil {
		return nil, err
	}

	for key, v := range fields {
		if !ps.used[key] && strings.TrimSpace(v) != "" {
			ps.errs[key] = "not a " + strings.ToLower(p.Label()) + " detail"
		}
	}
	if len(ps.errs) > 0 {
		return nil, ps.errs
	}
	return d, nil
}

// AllowedKeys lists the detail keys that belong to project p, in the order
// the estimator asks for them.
func AllowedKeys(p Project) []string {
	ps := newDetailParser(nil)
	if _, err := ps.parse(p); err != nil {
		return nil
	}
	return ps.keys
}

type detailParser struct {
	fields map[string]string
	errs   FieldErrors
	used   map[string]bool
	keys   []string
}

func newDetailParser(fields map[string]string) *detailParser {
	return &detailParser{fields: fields, errs: FieldErrors{}, used: map[string]bool{}}
}

func (ps *detailParser) parse(p Project) (Details, error) {
	switch p {
	case ProjectRoofing:
		return RoofingDetails{
			SquareFeet: ps.number("sqft", MaxSquareFeet),
			RoofType:   optionOf(ps, "roofType", roofMaterials),
			Complexity: optionOf(ps, "roofComplexity", roofComplexity),
			TearOff:    optionOf(ps, "tearOff", tearOffOptions),
		}, nil
	case ProjectDeck:
		return DeckDetails{
			SquareFeet: ps.number("sqft", MaxSquareFeet),
			Material:   optionOf(ps, "deckMaterial", deckMaterials),
			Height:     optionOf(ps, "deckHeight", deckHeights),
			Railing:    optionOf(ps, "railing", yesNo),
		}, nil
	case ProjectBathroom:
		return BathroomDetails{
			BathType: optionOf(ps, "bathType", bathTypes),
			Finish:   optionOf(ps, "bathFinish", finishLevels),
		}, nil
	case ProjectKitchen:
		return KitchenDetails{
			SquareFeet:   ps.number("sqft", MaxSquareFeet),
			Finish:       optionOf(ps, "kitchenFinish", finishLevels),
			LayoutChange: optionOf(ps, "layoutChange", layoutChanges),
		}, nil
	case ProjectSiding:
		return SidingDetails{
			SquareFeet: ps.number("sqft", MaxSquareFeet),
			Material:   optionOf(ps, "sidingMaterial", sidingMaterials),
			Stories:    optionOf(ps, "stories", storyFactors),
		}, nil
	case ProjectWindows:
		return WindowsDetails{
			Count:       ps.number("windowCount", MaxWindowCount),
			WindowType:  optionOf(ps, "windowType", windowTypes),
			InstallType: optionOf(ps, "installType", installTypes),
		}, nil
	case ProjectAddition:
		return AdditionDetails{
			SquareFeet:       ps.number("sqft", MaxSquareFeet),
			AdditionType:     optionOf(ps, "additionType", additionTypes),
			IncludesBathroom: optionOf(ps, "includesBathroom", yesNo),
		}, nil
	}
	return nil, fmt.Errorf("unknown project %q", p)
}

func (ps *detailParser) value(key string) (string, bool) {
	if !ps.used[key] {
		ps.used[key] = true
		ps.keys = append(ps.keys, key)
	}
	v, ok := ps.fields[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (ps *detailParser) number(key string, limit float64) float64 {
	raw, ok := ps.value(key)
	if !ok {
		return 0
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		ps.errs[key] = "must be a number"
		return 0
	}
	if n < 0 {
		ps.errs[key] = "must be zero or greater"
		return 0
	}
	if n > limit {
		ps.errs[key] = "must be at most " + formatNumber(limit)
		return 0
	}
	return n
}

func optionOf[V any](ps *detailParser, key string, table map[string]V) string {
	raw, ok := ps.value(key)
	if !ok {
		return ""
	}
	if _, known := table[raw]; !known {
		allowed := make([]string, 0, len(table))
		for k := range table {
			allowed = append(allowed, k)
		}
		sort.Strings(allowed)
		ps.errs[key] = "must be one of " + strings.Join(allowed, ", ")
		return ""
	}
	return raw
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// putFields copies the non-empty pairs into a fresh map.
func putFields(pairs ...string) map[string]string {
	out := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			out[pairs[i]] = pairs[i+1]
		}
	}
	return out
}

func quantityField(v float64) string {
	if v <= 0 {
		return ""
	}
	return formatQuantity(v)
}
