// Package instrument loads questionnaire definitions and serves them by id.
package instrument

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/screening-server/internal/domain"
)

//go:embed definitions/*.yaml
var builtin embed.FS

// definition is the on-disk layout of an instrument file.
type definition struct {
	ID              string                         `yaml:"id"`
	Version         string                         `yaml:"version"`
	Title           string                         `yaml:"title"`
	Description     string                         `yaml:"description"`
	Reference       string                         `yaml:"reference"`
	CollectIdentity bool                           `yaml:"collect_identity"`
	ItemAnnotations bool                           `yaml:"item_annotations"`
	Scale           []domain.ScalePoint            `yaml:"scale"`
	Items           []domain.Item                  `yaml:"items"`
	Bands           []domain.SeverityBand          `yaml:"severity_bands"`
	Domains         []domain.Domain                `yaml:"domains"`
	Rules           []domain.DecisionRule          `yaml:"decision_rules"`
	Supplementary   []domain.SupplementaryQuestion `yaml:"supplementary"`
}

// Parse decodes one YAML definition and validates it.
func Parse(r io.Reader) (*domain.Instrument, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def definition
	if err := dec.Decode(&def); err != nil {
		return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("decoding definition: %v", err)}
	}

	return domain.NewInstrument(domain.Instrument{
		ID:              strings.TrimSpace(def.ID),
		Version:         def.Version,
		Title:           def.Title,
		Description:     strings.TrimSpace(def.Description),
		Reference:       strings.TrimSpace(def.Reference),
		Items:           def.Items,
		Scale:           def.Scale,
		Bands:           def.Bands,
		Domains:         def.Domains,
		Rules:           def.Rules,
		Supplementary:   def.Supplementary,
		CollectIdentity: def.CollectIdentity,
		ItemAnnotations: def.ItemAnnotations,
	})
}

// Registry is an immutable set of instruments shared by all sessions.
type Registry struct {
	byID  map[string]*domain.Instrument
	order []string
}

// NewRegistry builds a registry, rejecting duplicate ids.
func NewRegistry(instruments ...*domain.Instrument) (*Registry, error) {
	r := &Registry{byID: make(map[string]*domain.Instrument, len(instruments))}
	for _, inst := range instruments {
		if err := r.add(inst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(inst *domain.Instrument) error {
	key := normalizeID(inst.ID)
	if _, exists := r.byID[key]; exists {
		return &domain.ConfigurationError{Instrument: inst.ID, Reason: "instrument id is defined twice"}
	}
	r.byID[key] = inst
	r.order = append(r.order, inst.ID)
	sort.Strings(r.order)
	return nil
}

// LoadBuiltin returns the registry of the bundled instruments.
func LoadBuiltin() (*Registry, error) {
	entries, err := builtin.ReadDir("definitions")
	if err != nil {
		return nil, fmt.Errorf("reading bundled definitions: %w", err)
	}

	r := &Registry{byID: make(map[string]*domain.Instrument)}
	for _, e := range entries {
		data, err := builtin.ReadFile("definitions/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		inst, err := Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := r.add(inst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load returns the bundled instruments plus every *.yaml file in dir.
// A file with the id of a bundled instrument replaces it.
func Load(dir string) (*Registry, error) {
	r, err := LoadBuiltin()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return r, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		inst, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		key := normalizeID(inst.ID)
		if _, exists := r.byID[key]; exists {
			r.byID[key] = inst
			continue
		}
		if err := r.add(inst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get returns the instrument with id, matching case-insensitively.
func (r *Registry) Get(id string) (*domain.Instrument, error) {
	inst, ok := r.byID[normalizeID(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, id)
	}
	return inst, nil
}

// List returns the instruments ordered by id.
func (r *Registry) List() []*domain.Instrument {
	out := make([]*domain.Instrument, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[normalizeID(id)])
	}
	return out
}

// IDs returns the instrument ids in order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
