// Package crops holds the static per-crop coefficient tables used by the
// recommendation engine. The catalog ships embedded in the binary and is
// parsed once; the resulting Catalog is immutable and safe for concurrent use.
package crops

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Documented defaults for crops absent from the catalog.
const (
	// DefaultSalePrice is zero so an unknown crop never produces revenue and
	// can therefore never rank as profitable.
	DefaultSalePrice = 0.0
	// DefaultCostMultiplier leaves the dataset cost estimate untouched.
	DefaultCostMultiplier = 1.0
	// DefaultYieldMultiplier uses the predictor score as-is.
	DefaultYieldMultiplier = 1.0
	// DefaultLossFraction is the post-harvest loss assumed for unknown crops.
	DefaultLossFraction = 0.10
	// DefaultCycleDays is the harvest offset for unknown crops.
	DefaultCycleDays = 120
	// DefaultCycleLabel describes an unknown crop's cycle.
	DefaultCycleLabel = "Ciclo Padrão"
)

// Profile is the static coefficient set of a single crop.
type Profile struct {
	Name            string  `yaml:"name"`
	SalePrice       float64 `yaml:"sale_price"`
	CostMultiplier  float64 `yaml:"cost_multiplier"`
	YieldMultiplier float64 `yaml:"yield_multiplier"`
	DefaultLoss     float64 `yaml:"default_loss"`
	CycleDays       int     `yaml:"cycle_days"`
	CycleLabel      string  `yaml:"cycle_label"`
	// Topic is the knowledge-base identifier of the crop's technical manual.
	Topic string `yaml:"topic"`
	// RainSensitive crops have their risk raised when a decile is too wet.
	RainSensitive bool `yaml:"rain_sensitive"`
}

type catalogFile struct {
	Crops []Profile `yaml:"crops"`
}

// Catalog is an immutable, name-indexed set of crop profiles.
type Catalog struct {
	profiles map[string]Profile
	order    []string
}

// Default returns the embedded catalog. It panics if the embedded document is
// malformed, which can only happen through a bad build.
func Default() *Catalog {
	c, err := Parse(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("crops: embedded catalog is invalid: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog document and validates every profile.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("crops: decoding catalog: %w", err)
	}

	c := &Catalog{profiles: make(map[string]Profile, len(f.Crops))}
	for _, p := range f.Crops {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.profiles[p.Name]; dup {
			return nil, fmt.Errorf("crops: duplicate crop %q", p.Name)
		}
		c.profiles[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return c, nil
}

func (p Profile) validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("crops: profile with empty name")
	case p.SalePrice < 0:
		return fmt.Errorf("crops: %s: sale_price must be >= 0", p.Name)
	case p.CostMultiplier < 0:
		return fmt.Errorf("crops: %s: cost_multiplier must be >= 0", p.Name)
	case p.DefaultLoss < 0 || p.DefaultLoss > 1:
		return fmt.Errorf("crops: %s: default_loss must be within [0,1]", p.Name)
	case p.CycleDays <= 0:
		return fmt.Errorf("crops: %s: cycle_days must be > 0", p.Name)
	}
	return nil
}

// Names returns the crop names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Profile returns the crop's profile and whether it exists.
func (c *Catalog) Profile(name string) (Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// SensitiveCrops returns the rain-sensitive crop names, sorted.
func (c *Catalog) SensitiveCrops() []string {
	var out []string
	for _, name := range c.order {
		if c.profiles[name].RainSensitive {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SalePrice returns the sale price per unit, or DefaultSalePrice.
func (c *Catalog) SalePrice(name string) float64 {
	if p, ok := c.profiles[name]; ok {
		return p.SalePrice
	}
	return DefaultSalePrice
}

// CostMultiplier returns the cost multiplier, or DefaultCostMultiplier.
func (c *Catalog) CostMultiplier(name string) float64 {
	if p, ok := c.profiles[name]; ok {
		return p.CostMultiplier
	}
	return DefaultCostMultiplier
}

// YieldMultiplier returns the yield multiplier, or DefaultYieldMultiplier.
func (c *Catalog) YieldMultiplier(name string) float64 {
	if p, ok := c.profiles[name]; ok {
		return p.YieldMultiplier
	}
	return DefaultYieldMultiplier
}

// LossFraction returns the default post-harvest loss, or DefaultLossFraction.
func (c *Catalog) LossFraction(name string) float64 {
	if p, ok := c.profiles[name]; ok {
		return p.DefaultLoss
	}
	return DefaultLossFraction
}

// CycleDays returns the cycle length in days, or DefaultCycleDays.
func (c *Catalog) CycleDays(name string) int {
	if p, ok := c.profiles[name]; ok {
		return p.CycleDays
	}
	return DefaultCycleDays
}

// CycleLabel returns the descriptive cycle label, or DefaultCycleLabel.
func (c *Catalog) CycleLabel(name string) string {
	if p, ok := c.profiles[name]; ok && p.CycleLabel != "" {
		return p.CycleLabel
	}
	return DefaultCycleLabel
}

// Topic returns the knowledge-base topic, or "" (no filter) for unknown crops.
func (c *Catalog) Topic(name string) string {
	return c.profiles[name].Topic
}

// IsRainSensitive reports whether the crop is in the rain-sensitive set.
// Unknown crops are not sensitive.
func (c *Catalog) IsRainSensitive(name string) bool {
	return c.profiles[name].RainSensitive
}
