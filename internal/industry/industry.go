// Package industry is the static catalog of per-industry sizing rules.
package industry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

var (
	// ErrUnknownIndustry is returned when a slug has no registry entry.
	ErrUnknownIndustry = errors.New("unknown industry")
	// ErrUnknownSubtype is returned when a subtype is absent from an industry.
	ErrUnknownSubtype = errors.New("unknown subtype")
)

// LookupError carries the offending key. It unwraps to ErrUnknownIndustry or
// ErrUnknownSubtype.
type LookupError struct {
	Kind     error
	Industry string
	Subtype  string
}

func (e *LookupError) Error() string {
	if errors.Is(e.Kind, ErrUnknownSubtype) {
		return fmt.Sprintf("%v: %q for industry %q", e.Kind, e.Subtype, e.Industry)
	}
	return fmt.Sprintf("%v: %q", e.Kind, e.Industry)
}

func (e *LookupError) Unwrap() error { return e.Kind }

// ModifierKind selects how a modifier's multiplier is chosen.
type ModifierKind int

const (
	// ModifierMultiplier always uses the configured multiplier.
	ModifierMultiplier ModifierKind = iota
	// ModifierEfficiencyRatio uses the attribute's own value when it exceeds 1.
	ModifierEfficiencyRatio
)

// PowerModifier scales demand when its trigger attribute is truthy.
type PowerModifier struct {
	Name       string
	Trigger    string
	Multiplier float64
	Kind       ModifierKind
}

// SubtypeConfig holds per-subtype sizing multipliers.
type SubtypeConfig struct {
	Name                 string
	BatteryRatio         float64
	CriticalLoadFraction float64
	DurationHours        float64
	GeneratorRequired    bool
	GeneratorOversize    float64
}

// BatteryDefaults bounds a non-zero battery power.
type BatteryDefaults struct {
	MinKW float64
	MaxKW float64
}

// FinancialDefaults are the industry's savings assumptions.
type FinancialDefaults struct {
	DemandCaptureRatio float64
	CyclesPerYear      float64
	ArbitrageSpread    float64
	DiscountRate       float64
	RateEscalation     float64
}

// GeneratorCondition says when a generator is recommended.
type GeneratorCondition string

const (
	GeneratorAlways           GeneratorCondition = "always"
	GeneratorIfUnreliableGrid GeneratorCondition = "if_unreliable_grid"
	GeneratorNever            GeneratorCondition = "never"
)

// Recommendations are the industry's equipment hints.
type Recommendations struct {
	SolarRecommended bool
	Generator        GeneratorCondition
}

// Config describes how to size and recommend equipment for one industry.
// Configs are read-only once registered.
type Config struct {
	Slug            string
	Name            string
	Aliases         []string
	DefaultSubtype  string
	Subtypes        map[string]SubtypeConfig
	Power           PowerCalculation
	Modifiers       []PowerModifier
	Battery         BatteryDefaults
	Financial       FinancialDefaults
	Recommendations Recommendations
}

// Subtype returns the subtype config. An empty name selects DefaultSubtype.
func (c Config) Subtype(name string) (SubtypeConfig, error) {
	if name == "" {
		name = c.DefaultSubtype
	}
	st, ok := c.Subtypes[name]
	if !ok {
		return SubtypeConfig{}, &LookupError{Kind: ErrUnknownSubtype, Industry: c.Slug, Subtype: name}
	}
	return st, nil
}

// SubtypeNames returns subtype keys in sorted order.
func (c Config) SubtypeNames() []string {
	names := make([]string, 0, len(c.Subtypes))
	for k := range c.Subtypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Registry maps normalized slugs and aliases to configs.
type Registry struct {
	version string
	configs map[string]Config
	aliases map[string]string
}

// NewRegistry validates configs and builds a registry.
func NewRegistry(version string, configs ...Config) (*Registry, error) {
	r := &Registry{
		version: version,
		configs: make(map[string]Config, len(configs)),
		aliases: make(map[string]string),
	}

	var err error
	for _, c := range configs {
		slug := Normalize(c.Slug)
		if _, dup := r.configs[slug]; dup {
			err = multierr.Append(err, fmt.Errorf("duplicate industry %q", slug))
			continue
		}
		err = multierr.Append(err, validateConfig(c))
		c.Slug = slug
		r.configs[slug] = c
	}
	for _, slug := range r.Slugs() {
		c := r.configs[slug]
		for _, a := range c.Aliases {
			alias := Normalize(a)
			if _, isSlug := r.configs[alias]; isSlug {
				err = multierr.Append(err, fmt.Errorf("alias %q of %q shadows an industry slug", alias, slug))
				continue
			}
			if prev, taken := r.aliases[alias]; taken && prev != slug {
				err = multierr.Append(err, fmt.Errorf("alias %q claimed by %q and %q", alias, prev, slug))
				continue
			}
			r.aliases[alias] = slug
		}
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func validateConfig(c Config) error {
	var err error
	if c.Power == nil {
		err = multierr.Append(err, fmt.Errorf("industry %q: missing power calculation", c.Slug))
	}
	if _, ok := c.Subtypes[c.DefaultSubtype]; !ok {
		err = multierr.Append(err, fmt.Errorf("industry %q: default subtype %q not defined", c.Slug, c.DefaultSubtype))
	}
	for _, name := range c.SubtypeNames() {
		st := c.Subtypes[name]
		if st.BatteryRatio < 0 || st.CriticalLoadFraction < 0 || st.CriticalLoadFraction > 1 || st.DurationHours <= 0 {
			err = multierr.Append(err, fmt.Errorf("industry %q subtype %q: ratios out of range", c.Slug, name))
		}
		if st.GeneratorOversize < 1 {
			err = multierr.Append(err, fmt.Errorf("industry %q subtype %q: generator oversize below 1", c.Slug, name))
		}
	}
	if c.Battery.MaxKW > 0 && c.Battery.MinKW > c.Battery.MaxKW {
		err = multierr.Append(err, fmt.Errorf("industry %q: battery min above max", c.Slug))
	}
	return err
}

// Normalize lower-cases a slug and folds spaces and underscores to hyphens.
func Normalize(slug string) string {
	s := strings.ToLower(strings.TrimSpace(slug))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	return s
}

// Lookup resolves a slug or alias.
func (r *Registry) Lookup(slug string) (Config, error) {
	key := Normalize(slug)
	if c, ok := r.configs[key]; ok {
		return c, nil
	}
	if canonical, ok := r.aliases[key]; ok {
		return r.configs[canonical], nil
	}
	return Config{}, &LookupError{Kind: ErrUnknownIndustry, Industry: slug}
}

// Slugs returns canonical slugs in sorted order.
func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.configs))
	for k := range r.configs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Version identifies the registry contents.
func (r *Registry) Version() string {
	return r.version
}
