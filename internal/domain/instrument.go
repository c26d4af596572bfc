package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Item is a single question of an instrument, identified by a 1-based ordinal.
type Item struct {
	Ordinal     int    `json:"ordinal" yaml:"ordinal"`
	Text        string `json:"text" yaml:"text"`
	DomainTag   string `json:"domain_tag,omitempty" yaml:"domain_tag"`
	Category    string `json:"category,omitempty" yaml:"category"`
	Subcategory string `json:"subcategory,omitempty" yaml:"subcategory"`
}

// ScalePoint is one selectable answer on the response scale.
type ScalePoint struct {
	Score int    `json:"score" yaml:"score"`
	Short string `json:"short" yaml:"short"`
	Long  string `json:"long,omitempty" yaml:"long"`
}

// SeverityBand maps an inclusive total range to a label.
type SeverityBand struct {
	Lower          int    `json:"lower" yaml:"lower"`
	Upper          int    `json:"upper" yaml:"upper"`
	Key            string `json:"key" yaml:"key"`
	Label          string `json:"label" yaml:"label"`
	Interpretation string `json:"interpretation" yaml:"interpretation"`
	Guidance       string `json:"guidance,omitempty" yaml:"guidance"`
}

// Contains reports whether total falls inside the band.
func (b SeverityBand) Contains(total int) bool {
	return total >= b.Lower && total <= b.Upper
}

// Domain is a named subset of items summed into a subscale.
type Domain struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
	Items []int  `json:"items" yaml:"items"`
}

// DecisionRule raises Flag when a score reaches Threshold. A zero Item
// compares the total; otherwise the score of that item is compared.
type DecisionRule struct {
	Flag        string `json:"flag" yaml:"flag"`
	Threshold   int    `json:"threshold" yaml:"threshold"`
	Item        int    `json:"item,omitempty" yaml:"item"`
	Description string `json:"description" yaml:"description"`
	Narrative   string `json:"narrative,omitempty" yaml:"narrative"`
}

// ItemBased reports whether the rule looks at a single item.
func (r DecisionRule) ItemBased() bool {
	return r.Item != 0
}

// SupplementaryQuestion is an unscored, optional question shown with the survey.
type SupplementaryQuestion struct {
	Key       string            `json:"key" yaml:"key"`
	Text      string            `json:"text" yaml:"text"`
	Options   []string          `json:"options" yaml:"options"`
	Narrative map[string]string `json:"narrative,omitempty" yaml:"narrative"`
}

// HasOption reports whether value is one of the question's options.
func (q SupplementaryQuestion) HasOption(value string) bool {
	for _, o := range q.Options {
		if o == value {
			return true
		}
	}
	return false
}

// Instrument is an immutable questionnaire definition. Build it with
// NewInstrument; the zero value is not usable.
type Instrument struct {
	ID              string                  `json:"id"`
	Version         string                  `json:"version"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description,omitempty"`
	Reference       string                  `json:"reference,omitempty"`
	Items           []Item                  `json:"items"`
	Scale           []ScalePoint            `json:"scale"`
	Bands           []SeverityBand          `json:"severity_bands"`
	Domains         []Domain                `json:"domains,omitempty"`
	Rules           []DecisionRule          `json:"decision_rules,omitempty"`
	Supplementary   []SupplementaryQuestion `json:"supplementary,omitempty"`
	CollectIdentity bool                    `json:"collect_identity"`
	ItemAnnotations bool                    `json:"item_annotations"`

	maxScore int
	byOrd    map[int]int
}

// NewInstrument validates def and returns a ready instrument. Any structural
// defect yields a *ConfigurationError.
func NewInstrument(def Instrument) (*Instrument, error) {
	inst := def
	fail := func(format string, args ...interface{}) (*Instrument, error) {
		return nil, &ConfigurationError{Instrument: def.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(inst.ID) == "" {
		return fail("instrument id is required")
	}
	if len(inst.Items) == 0 {
		return fail("instrument has no items")
	}
	if len(inst.Scale) == 0 {
		return fail("response scale is empty")
	}

	inst.Items = append([]Item(nil), def.Items...)
	sort.Slice(inst.Items, func(i, j int) bool { return inst.Items[i].Ordinal < inst.Items[j].Ordinal })
	inst.byOrd = make(map[int]int, len(inst.Items))
	for i, item := range inst.Items {
		if item.Ordinal != i+1 {
			return fail("item ordinals must be 1..%d without gaps or duplicates, found %d at position %d", len(inst.Items), item.Ordinal, i+1)
		}
		inst.byOrd[item.Ordinal] = i
	}

	inst.Scale = append([]ScalePoint(nil), def.Scale...)
	sort.Slice(inst.Scale, func(i, j int) bool { return inst.Scale[i].Score < inst.Scale[j].Score })
	for i, p := range inst.Scale {
		if p.Score < 0 {
			return fail("scale score %d is negative", p.Score)
		}
		if i > 0 && inst.Scale[i-1].Score == p.Score {
			return fail("scale score %d is defined twice", p.Score)
		}
	}
	inst.maxScore = inst.Scale[len(inst.Scale)-1].Score

	if err := inst.validateBands(); err != nil {
		return nil, err
	}
	if err := inst.validateDomains(); err != nil {
		return nil, err
	}
	if err := inst.validateRules(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, q := range inst.Supplementary {
		if q.Key == "" {
			return fail("supplementary question without key")
		}
		if seen[q.Key] {
			return fail("supplementary question %q is defined twice", q.Key)
		}
		seen[q.Key] = true
		if len(q.Options) == 0 {
			return fail("supplementary question %q has no options", q.Key)
		}
	}

	return &inst, nil
}

func (inst *Instrument) validateBands() error {
	fail := func(format string, args ...interface{}) error {
		return &ConfigurationError{Instrument: inst.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if len(inst.Bands) == 0 {
		return fail("no severity bands defined")
	}
	inst.Bands = append([]SeverityBand(nil), inst.Bands...)
	sort.SliceStable(inst.Bands, func(i, j int) bool { return inst.Bands[i].Lower < inst.Bands[j].Lower })

	expected := 0
	for _, b := range inst.Bands {
		if b.Lower > b.Upper {
			return fail("band %q has lower bound %d above upper bound %d", b.Label, b.Lower, b.Upper)
		}
		if b.Lower < expected {
			return fail("band %q overlaps the previous band at %d", b.Label, b.Lower)
		}
		if b.Lower > expected {
			return fail("totals %d..%d are not covered by any band", expected, b.Lower-1)
		}
		if b.Label == "" {
			return fail("band %d..%d has no label", b.Lower, b.Upper)
		}
		expected = b.Upper + 1
	}
	if max := inst.MaxTotal(); expected-1 != max {
		return fail("bands end at %d but the maximum total is %d", expected-1, max)
	}
	return nil
}

func (inst *Instrument) validateDomains() error {
	names := make(map[string]bool)
	for _, d := range inst.Domains {
		if d.Name == "" {
			return &ConfigurationError{Instrument: inst.ID, Reason: "domain without name"}
		}
		if names[d.Name] {
			return &ConfigurationError{Instrument: inst.ID, Reason: fmt.Sprintf("domain %q is defined twice", d.Name)}
		}
		names[d.Name] = true
		if len(d.Items) == 0 {
			return &ConfigurationError{Instrument: inst.ID, Reason: fmt.Sprintf("domain %q has no items", d.Name)}
		}
		for _, ord := range d.Items {
			if _, ok := inst.byOrd[ord]; !ok {
				return &ConfigurationError{Instrument: inst.ID, Reason: fmt.Sprintf("domain %q references unknown item %d", d.Name, ord)}
			}
		}
	}
	return nil
}

func (inst *Instrument) validateRules() error {
	flags := make(map[string]bool)
	for _, r := range inst.Rules {
		if r.Flag == "" {
			return &ConfigurationError{Instrument: inst.ID, Reason: "decision rule without flag name"}
		}
		if flags[r.Flag] {
			return &ConfigurationError{Instrument: inst.ID, Reason: fmt.Sprintf("flag %q is defined twice", r.Flag)}
		}
		flags[r.Flag] = true
		if r.ItemBased() {
			if _, ok := inst.byOrd[r.Item]; !ok {
				return &ConfigurationError{Instrument: inst.ID, Reason: fmt.Sprintf("flag %q references unknown item %d", r.Flag, r.Item)}
			}
		}
	}
	return nil
}

// MaxScore is the highest score on the response scale.
func (inst *Instrument) MaxScore() int {
	return inst.maxScore
}

// MaxTotal is the highest achievable total.
func (inst *Instrument) MaxTotal() int {
	return len(inst.Items) * inst.maxScore
}

// ItemCount returns the number of items.
func (inst *Instrument) ItemCount() int {
	return len(inst.Items)
}

// Item returns the item with the given ordinal.
func (inst *Instrument) Item(ordinal int) (Item, bool) {
	i, ok := inst.byOrd[ordinal]
	if !ok {
		return Item{}, false
	}
	return inst.Items[i], true
}

// HasScore reports whether score is a point on the scale.
func (inst *Instrument) HasScore(score int) bool {
	i := sort.Search(len(inst.Scale), func(i int) bool { return inst.Scale[i].Score >= score })
	return i < len(inst.Scale) && inst.Scale[i].Score == score
}

// ScaleLabel returns the short label of a score.
func (inst *Instrument) ScaleLabel(score int) string {
	for _, p := range inst.Scale {
		if p.Score == score {
			return p.Short
		}
	}
	return ""
}

// Classify returns the band containing total using binary search over the
// sorted, contiguous bands.
func (inst *Instrument) Classify(total int) (SeverityBand, bool) {
	i := sort.Search(len(inst.Bands), func(i int) bool { return inst.Bands[i].Upper >= total })
	if i == len(inst.Bands) || !inst.Bands[i].Contains(total) {
		return SeverityBand{}, false
	}
	return inst.Bands[i], true
}

// Supplement returns the supplementary question with the given key.
func (inst *Instrument) Supplement(key string) (SupplementaryQuestion, bool) {
	for _, q := range inst.Supplementary {
		if q.Key == key {
			return q, true
		}
	}
	return SupplementaryQuestion{}, false
}

// Missing lists unanswered ordinals in ascending order.
func (inst *Instrument) Missing(answers Responses) []int {
	missing := make([]int, 0)
	for _, item := range inst.Items {
		if _, ok := answers[item.Ordinal]; !ok {
			missing = append(missing, item.Ordinal)
		}
	}
	return missing
}

// DomainScores sums answered items per domain.
func (inst *Instrument) DomainScores(answers Responses) map[string]int {
	if len(inst.Domains) == 0 {
		return map[string]int{}
	}
	scores := make(map[string]int, len(inst.Domains))
	for _, d := range inst.Domains {
		sum := 0
		for _, ord := range d.Items {
			sum += answers[ord]
		}
		scores[d.Name] = sum
	}
	return scores
}

// DomainMax returns the maximum achievable score per domain.
func (inst *Instrument) DomainMax() map[string]int {
	max := make(map[string]int, len(inst.Domains))
	for _, d := range inst.Domains {
		max[d.Name] = len(d.Items) * inst.maxScore
	}
	return max
}

// Flags evaluates the decision rules. Total based rules only fire on a
// complete response set; item based rules fire once their item is answered.
func (inst *Instrument) Flags(total int, answers Responses, complete bool) map[string]bool {
	flags := make(map[string]bool, len(inst.Rules))
	for _, r := range inst.Rules {
		if r.ItemBased() {
			score, ok := answers[r.Item]
			flags[r.Flag] = ok && score >= r.Threshold
			continue
		}
		flags[r.Flag] = complete && total >= r.Threshold
	}
	return flags
}
