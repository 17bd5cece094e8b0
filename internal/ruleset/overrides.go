// internal/ruleset/overrides.go
package ruleset

import (
	"fmt"

	"github.com/Furiten/riichi-api/internal/errs"
)

// Override applies per-event tweaks on top of a named variant.
// Keys not present are ignored and the variant value persists. Only toggles and
// the chombo penalty can be overridden, since uma, oka and point units must stay zero-sum.
func (r *Ruleset) Override(overrides map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := overrides[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return errs.Invalid("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	bools := []struct {
		key   string
		field *bool
	}{
		{"riichiGoesToWinner", &r.RiichiGoesToWinner},
		{"extraChomboPayments", &r.ExtraChomboPayments},
		{"withAtamahane", &r.WithAtamahane},
		{"withAbortives", &r.WithAbortives},
		{"withKuitan", &r.WithKuitan},
		{"withKazoe", &r.WithKazoe},
		{"withButtobi", &r.WithButtobi},
		{"withMultiYakumans", &r.WithMultiYakumans},
		{"withOpenRiichi", &r.WithOpenRiichi},
		{"withNagashiMangan", &r.WithNagashiMangan},
		{"withKiriageMangan", &r.WithKiriageMangan},
		{"tonpuusen", &r.Tonpuusen},
		{"withLeadingDealerGameOver", &r.WithLeadingDealerGameOver},
	}
	for _, b := range bools {
		if err := assignBool(b.field, b.key); err != nil {
			return err
		}
	}

	if val, exists := overrides["chomboPenalty"]; exists && val != nil {
		// JSON numbers decode as float64
		switch n := val.(type) {
		case float64:
			r.ChomboPenalty = int(n)
		case int:
			r.ChomboPenalty = n
		default:
			return errs.Invalid("invalid type for chomboPenalty")
		}
		if r.ChomboPenalty < 0 {
			return errs.Invalid("chomboPenalty must be non-negative")
		}
	}
	return nil
}

// Resolve looks up a variant by name and applies overrides to a copy of it.
func Resolve(name string, overrides map[string]interface{}) (Ruleset, error) {
	r, err := Get(name)
	if err != nil {
		return Ruleset{}, err
	}
	if err := r.Override(overrides); err != nil {
		return Ruleset{}, fmt.Errorf("ruleset %s: %w", name, err)
	}
	return r, nil
}
