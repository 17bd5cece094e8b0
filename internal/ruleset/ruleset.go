// internal/ruleset/ruleset.go
package ruleset

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"

	"github.com/Furiten/riichi-api/internal/errs"
	"gopkg.in/yaml.v3"
)

// UmaStrategy selects how rank bonuses are derived from final scores.
type UmaStrategy string

const (
	// UmaFixed uses one table regardless of the final scores.
	UmaFixed UmaStrategy = "fixed"
	// UmaMinusAware picks a table by how many players finished below startPoints.
	UmaMinusAware UmaStrategy = "minusAware"
)

// Ruleset is an immutable bundle of scoring parameters. Values returned by Get
// never share memory with the registry.
type Ruleset struct {
	Name string `yaml:"name" json:"name"`

	TenboDivider        int  `yaml:"tenboDivider" json:"tenboDivider"`               // score -> result units
	RatingDivider       int  `yaml:"ratingDivider" json:"ratingDivider"`             // score -> rating units
	StartRating         int  `yaml:"startRating" json:"startRating"`                 // rating of a fresh player
	Oka                 int  `yaml:"oka" json:"oka"`                                 // bonus for the 1st place, result units
	StartPoints         int  `yaml:"startPoints" json:"startPoints"`                 // every seat starts with this
	RiichiGoesToWinner  bool `yaml:"riichiGoesToWinner" json:"riichiGoesToWinner"`   // leftover table bets go to 1st place
	ExtraChomboPayments bool `yaml:"extraChomboPayments" json:"extraChomboPayments"` // chombo pays mangan to the table
	ChomboPenalty       int  `yaml:"chomboPenalty" json:"chomboPenalty"`             // result units taken per chombo

	WithAtamahane     bool `yaml:"withAtamahane" json:"withAtamahane"`
	WithAbortives     bool `yaml:"withAbortives" json:"withAbortives"`
	WithKuitan        bool `yaml:"withKuitan" json:"withKuitan"`
	WithKazoe         bool `yaml:"withKazoe" json:"withKazoe"`
	WithButtobi       bool `yaml:"withButtobi" json:"withButtobi"`
	WithMultiYakumans bool `yaml:"withMultiYakumans" json:"withMultiYakumans"`
	WithOpenRiichi    bool `yaml:"withOpenRiichi" json:"withOpenRiichi"`
	WithNagashiMangan bool `yaml:"withNagashiMangan" json:"withNagashiMangan"`
	WithKiriageMangan bool `yaml:"withKiriageMangan" json:"withKiriageMangan"`

	Tonpuusen                 bool `yaml:"tonpuusen" json:"tonpuusen"`
	WithLeadingDealerGameOver bool `yaml:"withLeadingDealerGameOver" json:"withLeadingDealerGameOver"`

	UmaStrategy UmaStrategy `yaml:"umaStrategy" json:"umaStrategy"`
	UmaTable    []int       `yaml:"uma" json:"uma,omitempty"`
	UmaByMinus  [][]int     `yaml:"umaByMinus" json:"umaByMinus,omitempty"`
}

const (
	hanchanLength   = 8
	tonpuusenLength = 4
)

//go:embed rulesets.yaml
var rulesetsYAML []byte

var registry = mustLoad(rulesetsYAML)

// Get resolves a ruleset by name.
func Get(name string) (Ruleset, error) {
	r, ok := registry[name]
	if !ok {
		return Ruleset{}, errs.NotFound("ruleset %q is not defined", name)
	}
	return r.clone(), nil
}

// Names lists every registered ruleset, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MatchLength is the number of dealer rotations in a full match.
func (r Ruleset) MatchLength() int {
	if r.Tonpuusen {
		return tonpuusenLength
	}
	return hanchanLength
}

// Uma returns rank bonuses ordered from 1st to 4th place for the given final scores.
// The oka is not included.
func (r Ruleset) Uma(scores []int) ([]int, error) {
	switch r.UmaStrategy {
	case UmaFixed:
		return slices.Clone(r.UmaTable), nil
	case UmaMinusAware:
		minused := 0
		for _, s := range scores {
			if s < r.StartPoints {
				minused++
			}
		}
		if minused >= len(r.UmaByMinus) {
			return nil, errs.Invalid("ruleset %s has no uma for %d players below start points", r.Name, minused)
		}
		return slices.Clone(r.UmaByMinus[minused]), nil
	default:
		return nil, errs.Invalid("ruleset %s has unknown uma strategy %q", r.Name, r.UmaStrategy)
	}
}

func (r Ruleset) clone() Ruleset {
	c := r
	c.UmaTable = slices.Clone(r.UmaTable)
	c.UmaByMinus = make([][]int, len(r.UmaByMinus))
	for i, row := range r.UmaByMinus {
		c.UmaByMinus[i] = slices.Clone(row)
	}
	return c
}

// validate checks the invariants every variant must satisfy.
func (r Ruleset) validate() error {
	if r.Name == "" {
		return fmt.Errorf("ruleset without a name")
	}
	if r.TenboDivider <= 0 || r.RatingDivider <= 0 {
		return fmt.Errorf("ruleset %s: dividers must be positive", r.Name)
	}
	if r.StartPoints <= 0 {
		return fmt.Errorf("ruleset %s: startPoints must be positive", r.Name)
	}

	checkTable := func(t []int) error {
		if len(t) != 4 {
			return fmt.Errorf("ruleset %s: uma table must have 4 entries, got %d", r.Name, len(t))
		}
		sum := r.Oka
		for _, v := range t {
			sum += v
		}
		if sum != 0 {
			return fmt.Errorf("ruleset %s: uma %v with oka %d is not zero-sum", r.Name, t, r.Oka)
		}
		return nil
	}

	switch r.UmaStrategy {
	case UmaFixed:
		return checkTable(r.UmaTable)
	case UmaMinusAware:
		if len(r.UmaByMinus) != 5 {
			return fmt.Errorf("ruleset %s: umaByMinus needs a row for 0..4 minused players", r.Name)
		}
		for _, row := range r.UmaByMinus {
			if err := checkTable(row); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("ruleset %s: unknown uma strategy %q", r.Name, r.UmaStrategy)
	}
}

// Parse decodes a YAML list of rulesets and validates each of them.
func Parse(data []byte) (map[string]Ruleset, error) {
	var list []Ruleset
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rulesets: %w", err)
	}
	out := make(map[string]Ruleset, len(list))
	for _, r := range list {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := out[r.Name]; dup {
			return nil, fmt.Errorf("ruleset %s defined twice", r.Name)
		}
		out[r.Name] = r
	}
	return out, nil
}

func mustLoad(data []byte) map[string]Ruleset {
	m, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return m
}
