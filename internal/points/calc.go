// internal/points/calc.go
package points

import (
	"slices"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/ruleset"
)

// NoSeat marks an unset actor.
const NoSeat = -1

// Seats is the number of players at a table.
const Seats = 4

const (
	riichiBet     = 1000
	honbaRon      = 300
	honbaTsumo    = 100
	manganBase    = 2000
	hanemanBase   = 3000
	baimanBase    = 4000
	sanbaimanBase = 6000
	yakumanBase   = 8000
)

// Hand is the priced value of a winning hand.
type Hand struct {
	Han     int
	Fu      int
	Yakuman bool
}

// Tiers are the four rounded payment units every payment is built from.
type Tiers struct {
	Rounded          int `json:"rounded"`
	DoubleRounded    int `json:"doubleRounded"`
	TimesFourRounded int `json:"timesFourRounded"`
	TimesSixRounded  int `json:"timesSixRounded"`
}

// RonPayment is what the loser hands over for a ron.
func (t Tiers) RonPayment(winnerIsDealer bool) int {
	if winnerIsDealer {
		return t.TimesSixRounded
	}
	return t.TimesFourRounded
}

// TsumoPayments returns what the dealer and each non-dealer pay for a tsumo.
// For a dealer tsumo both values are equal.
func (t Tiers) TsumoPayments(winnerIsDealer bool) (dealer, nonDealer int) {
	if winnerIsDealer {
		return t.DoubleRounded, t.DoubleRounded
	}
	return t.DoubleRounded, t.Rounded
}

// Context is the table state a payment is computed against.
type Context struct {
	Rules         ruleset.Ruleset
	Dealer        int // seat of the current dealer
	Honba         int
	RiichiOnTable int // bets carried over from earlier rounds
}

func ceil100(v int) int {
	return (v + 99) / 100 * 100
}

func limitTiers(base int) Tiers {
	return Tiers{
		Rounded:          base,
		DoubleRounded:    base * 2,
		TimesFourRounded: base * 4,
		TimesSixRounded:  base * 6,
	}
}

// BasePoints prices a hand into its four payment tiers.
func BasePoints(rules ruleset.Ruleset, hand Hand) (Tiers, error) {
	if hand.Yakuman {
		return limitTiers(yakumanBase), nil
	}
	if hand.Han < 1 {
		return Tiers{}, errs.Invalid("hand must have at least 1 han, got %d", hand.Han)
	}

	if hand.Han < 5 {
		if hand.Fu <= 0 {
			return Tiers{}, errs.Invalid("hand of %d han must have positive fu, got %d", hand.Han, hand.Fu)
		}
		base := hand.Fu * (1 << (2 + hand.Han))
		kiriage := rules.WithKiriageMangan &&
			((hand.Han == 4 && hand.Fu == 30) || (hand.Han == 3 && hand.Fu == 60))
		if base >= manganBase || kiriage {
			return limitTiers(manganBase), nil
		}
		return Tiers{
			Rounded:          ceil100(base),
			DoubleRounded:    ceil100(2 * base),
			TimesFourRounded: ceil100(4 * base),
			TimesSixRounded:  ceil100(6 * base),
		}, nil
	}

	switch {
	case hand.Han >= 13 && rules.WithKazoe:
		return limitTiers(yakumanBase), nil
	case hand.Han >= 11:
		return limitTiers(sanbaimanBase), nil
	case hand.Han >= 8:
		return limitTiers(baimanBase), nil
	case hand.Han >= 6:
		return limitTiers(hanemanBase), nil
	default:
		return limitTiers(manganBase), nil
	}
}

func checkSeat(seat int, role string) error {
	if seat == NoSeat {
		return errs.Invalid("%s is not set", role)
	}
	if seat < 0 || seat >= Seats {
		return errs.Invalid("%s seat %d is out of range", role, seat)
	}
	return nil
}

func checkScores(scores []int) error {
	if len(scores) != Seats {
		return errs.Invalid("expected %d scores, got %d", Seats, len(scores))
	}
	return nil
}

func checkSeats(seats []int, role string) error {
	seen := make(map[int]bool, len(seats))
	for _, s := range seats {
		if err := checkSeat(s, role); err != nil {
			return err
		}
		if seen[s] {
			return errs.Invalid("%s seat %d listed twice", role, s)
		}
		seen[s] = true
	}
	return nil
}

// payRiichi takes a bet from every bettor and hands this round's and the carried
// bets to the winner.
func payRiichi(scores []int, winner int, riichi []int, onTable int) {
	for _, s := range riichi {
		scores[s] -= riichiBet
	}
	scores[winner] += riichiBet * (len(riichi) + onTable)
}

// Ron computes scores after winner takes a hand off loser's discard.
func Ron(ctx Context, scores []int, winner, loser int, hand Hand, riichi []int) ([]int, error) {
	if err := checkScores(scores); err != nil {
		return nil, err
	}
	if err := checkSeat(winner, "ron winner"); err != nil {
		return nil, err
	}
	if err := checkSeat(loser, "ron loser"); err != nil {
		return nil, err
	}
	if winner == loser {
		return nil, errs.Invalid("ron winner and loser must differ")
	}
	if err := checkSeats(riichi, "riichi bettor"); err != nil {
		return nil, err
	}
	tiers, err := BasePoints(ctx.Rules, hand)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(scores)
	pay := tiers.RonPayment(winner == ctx.Dealer)
	out[winner] += pay
	out[loser] -= pay

	payRiichi(out, winner, riichi, ctx.RiichiOnTable)

	out[winner] += honbaRon * ctx.Honba
	out[loser] -= honbaRon * ctx.Honba
	return out, nil
}

// Tsumo computes scores after winner self-draws a winning tile.
func Tsumo(ctx Context, scores []int, winner int, hand Hand, riichi []int) ([]int, error) {
	if err := checkScores(scores); err != nil {
		return nil, err
	}
	if err := checkSeat(winner, "tsumo winner"); err != nil {
		return nil, err
	}
	if err := checkSeats(riichi, "riichi bettor"); err != nil {
		return nil, err
	}
	tiers, err := BasePoints(ctx.Rules, hand)
	if err != nil {
		return nil, err
	}

	out := slices.Clone(scores)
	fromDealer, fromOthers := tiers.TsumoPayments(winner == ctx.Dealer)
	for seat := range out {
		if seat == winner {
			continue
		}
		pay := fromOthers
		if seat == ctx.Dealer {
			pay = fromDealer
		}
		out[seat] -= pay
		out[winner] += pay
	}

	payRiichi(out, winner, riichi, ctx.RiichiOnTable)

	for seat := range out {
		if seat == winner {
			continue
		}
		out[seat] -= honbaTsumo * ctx.Honba
		out[winner] += honbaTsumo * ctx.Honba
	}
	return out, nil
}

// Draw computes scores after an exhaustive draw. Riichi bets go to the table.
func Draw(scores []int, tempai, riichi []int) ([]int, error) {
	if err := checkScores(scores); err != nil {
		return nil, err
	}
	if len(tempai) > Seats {
		return nil, errs.Invalid("%d players cannot be tempai at a %d-seat table", len(tempai), Seats)
	}
	if err := checkSeats(tempai, "tempai player"); err != nil {
		return nil, err
	}
	if err := checkSeats(riichi, "riichi bettor"); err != nil {
		return nil, err
	}

	out := slices.Clone(scores)
	for _, s := range riichi {
		out[s] -= riichiBet
	}

	var gain, loss int
	switch len(tempai) {
	case 0, Seats:
		return out, nil
	case 1:
		gain, loss = 3000, 1000
	case 2:
		gain, loss = 1500, 1500
	case 3:
		gain, loss = 1000, 3000
	}
	for seat := range out {
		if slices.Contains(tempai, seat) {
			out[seat] += gain
		} else {
			out[seat] -= loss
		}
	}
	return out, nil
}

// Abort computes scores after an abortive draw: bettors only forfeit their bets.
func Abort(scores []int, riichi []int) ([]int, error) {
	if err := checkScores(scores); err != nil {
		return nil, err
	}
	if err := checkSeats(riichi, "riichi bettor"); err != nil {
		return nil, err
	}
	out := slices.Clone(scores)
	for _, s := range riichi {
		out[s] -= riichiBet
	}
	return out, nil
}

// Chombo computes scores after a penalty. Without extra chombo payments the
// penalty is purely administrative and scores are unchanged.
func Chombo(ctx Context, scores []int, loser int) ([]int, error) {
	if err := checkScores(scores); err != nil {
		return nil, err
	}
	if err := checkSeat(loser, "chombo loser"); err != nil {
		return nil, err
	}
	out := slices.Clone(scores)
	if !ctx.Rules.ExtraChomboPayments {
		return out, nil
	}

	if loser == ctx.Dealer {
		for seat := range out {
			if seat == loser {
				out[seat] -= 12000
			} else {
				out[seat] += 4000
			}
		}
		return out, nil
	}
	for seat := range out {
		switch seat {
		case loser:
			out[seat] -= 8000
		case ctx.Dealer:
			out[seat] += 4000
		default:
			out[seat] += 2000
		}
	}
	return out, nil
}
