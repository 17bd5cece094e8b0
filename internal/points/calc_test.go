// internal/points/calc_test.go
package points

import (
	"errors"
	"testing"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRules(t *testing.T, name string) ruleset.Ruleset {
	t.Helper()
	r, err := ruleset.Get(name)
	require.NoError(t, err)
	return r
}

func sum(v []int) int {
	total := 0
	for _, x := range v {
		total += x
	}
	return total
}

func TestBasePointsLowHan(t *testing.T) {
	rules := mustRules(t, "ema")

	tests := []struct {
		name string
		hand Hand
		want Tiers
	}{
		{"1han30fu", Hand{Han: 1, Fu: 30}, Tiers{300, 500, 1000, 1500}},
		{"2han40fu", Hand{Han: 2, Fu: 40}, Tiers{700, 1300, 2600, 3900}},
		{"3han30fu", Hand{Han: 3, Fu: 30}, Tiers{1000, 2000, 3900, 5800}},
		{"4han30fu", Hand{Han: 4, Fu: 30}, Tiers{2000, 3900, 7700, 11600}},
		{"1han110fu", Hand{Han: 1, Fu: 110}, Tiers{900, 1800, 3600, 5300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BasePoints(rules, tt.hand)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBasePointsLimits(t *testing.T) {
	kazoe := mustRules(t, "jpmlA")
	noKazoe := mustRules(t, "jpmlB")

	tests := []struct {
		name  string
		rules ruleset.Ruleset
		hand  Hand
		base  int
	}{
		{"mangan", kazoe, Hand{Han: 5}, 2000},
		{"haneman", kazoe, Hand{Han: 6}, 3000},
		{"haneman 7", kazoe, Hand{Han: 7}, 3000},
		{"baiman", kazoe, Hand{Han: 8}, 4000},
		{"baiman 10", kazoe, Hand{Han: 10}, 4000},
		{"sanbaiman", kazoe, Hand{Han: 11}, 6000},
		{"kazoe yakuman", kazoe, Hand{Han: 13}, 8000},
		{"13 han without kazoe", noKazoe, Hand{Han: 13}, 6000},
		{"declared yakuman without kazoe", noKazoe, Hand{Yakuman: true}, 8000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BasePoints(tt.rules, tt.hand)
			require.NoError(t, err)
			assert.Equal(t, limitTiers(tt.base), got)
		})
	}
}

func TestManganClamp(t *testing.T) {
	for _, name := range []string{"jpmlA", "jpmlB"} {
		rules := mustRules(t, name)
		mangan, err := BasePoints(rules, Hand{Han: 5})
		require.NoError(t, err)

		for _, h := range []Hand{{Han: 4, Fu: 40}, {Han: 3, Fu: 70}} {
			got, err := BasePoints(rules, h)
			require.NoError(t, err)
			assert.Equal(t, mangan, got, "%s %+v", name, h)
		}
	}
}

func TestKiriageBoundary(t *testing.T) {
	with := mustRules(t, "jpmlB")
	without := mustRules(t, "jpmlA")
	require.True(t, with.WithKiriageMangan)
	require.False(t, without.WithKiriageMangan)

	for _, h := range []Hand{{Han: 4, Fu: 30}, {Han: 3, Fu: 60}} {
		got, err := BasePoints(with, h)
		require.NoError(t, err)
		assert.Equal(t, limitTiers(manganBase), got)

		got, err = BasePoints(without, h)
		require.NoError(t, err)
		assert.Equal(t, 1920, h.Fu*(1<<(2+h.Han)))
		assert.Equal(t, Tiers{2000, 3900, 7700, 11600}, got)
	}
}

func TestRoundingMonotonicity(t *testing.T) {
	for _, name := range ruleset.Names() {
		rules := mustRules(t, name)
		for _, fu := range []int{20, 25, 30, 40, 50, 60, 70, 80, 90, 100, 110} {
			prev := Tiers{}
			for han := 1; han <= 13; han++ {
				got, err := BasePoints(rules, Hand{Han: han, Fu: fu})
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got.Rounded, prev.Rounded)
				assert.GreaterOrEqual(t, got.DoubleRounded, prev.DoubleRounded)
				assert.GreaterOrEqual(t, got.TimesFourRounded, prev.TimesFourRounded)
				assert.GreaterOrEqual(t, got.TimesSixRounded, prev.TimesSixRounded)
				prev = got
			}
		}
	}
}

func TestBasePointsInvalid(t *testing.T) {
	rules := mustRules(t, "ema")
	_, err := BasePoints(rules, Hand{Han: 0, Fu: 30})
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	_, err = BasePoints(rules, Hand{Han: 2})
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
}

func TestDealerTsumoScenario(t *testing.T) {
	ctx := Context{Rules: mustRules(t, "tenhou"), Dealer: 0}
	scores := []int{25000, 25000, 25000, 25000}

	got, err := Tsumo(ctx, scores, 0, Hand{Han: 3, Fu: 30}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{31000, 23000, 23000, 23000}, got)
	assert.Equal(t, []int{25000, 25000, 25000, 25000}, scores, "input must not be mutated")
}

func TestNonDealerTsumoWithHonbaAndRiichi(t *testing.T) {
	ctx := Context{Rules: mustRules(t, "ema"), Dealer: 0, Honba: 2, RiichiOnTable: 1}
	scores := []int{30000, 30000, 30000, 30000}

	// 2han30fu: rounded 500, doubleRounded 1000
	got, err := Tsumo(ctx, scores, 2, Hand{Han: 2, Fu: 30}, []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{
		30000 - 1000 - 200,
		30000 - 500 - 200,
		30000 + 2000 + 3000 + 600 - 1000,
		30000 - 500 - 200 - 1000,
	}, got)
	assert.Equal(t, 120000+1000, sum(got), "carried table bet is paid out")
}

func TestRon(t *testing.T) {
	ctx := Context{Rules: mustRules(t, "ema"), Dealer: 1, Honba: 1}
	scores := []int{30000, 30000, 30000, 30000}

	got, err := Ron(ctx, scores, 1, 3, Hand{Han: 3, Fu: 30}, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []int{29000, 30000 + 5800 + 1000 + 300, 30000, 30000 - 5800 - 300}, got)

	got, err = Ron(ctx, scores, 0, 3, Hand{Han: 3, Fu: 30}, nil)
	require.NoError(t, err)
	assert.Equal(t, 30000+3900+300, got[0])
}

func TestRonRequiresActors(t *testing.T) {
	ctx := Context{Rules: mustRules(t, "ema")}
	scores := []int{30000, 30000, 30000, 30000}

	_, err := Ron(ctx, scores, NoSeat, 1, Hand{Han: 1, Fu: 30}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	_, err = Ron(ctx, scores, 1, NoSeat, Hand{Han: 1, Fu: 30}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	_, err = Ron(ctx, scores, 1, 1, Hand{Han: 1, Fu: 30}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	_, err = Tsumo(ctx, scores, NoSeat, Hand{Han: 1, Fu: 30}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
	_, err = Chombo(ctx, scores, NoSeat)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
}

func TestDrawSplits(t *testing.T) {
	scores := []int{30000, 30000, 30000, 30000}

	tests := []struct {
		name   string
		tempai []int
		want   []int
	}{
		{"nobody", nil, []int{30000, 30000, 30000, 30000}},
		{"one", []int{2}, []int{29000, 29000, 33000, 29000}},
		{"two", []int{0, 3}, []int{31500, 28500, 28500, 31500}},
		{"three", []int{0, 1, 2}, []int{31000, 31000, 31000, 27000}},
		{"all", []int{0, 1, 2, 3}, []int{30000, 30000, 30000, 30000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Draw(scores, tt.tempai, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, sum(scores), sum(got), "draw payments are zero-sum")
		})
	}
}

func TestDrawRiichiAndTooManyTempai(t *testing.T) {
	scores := []int{30000, 30000, 30000, 30000}
	got, err := Draw(scores, []int{1}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []int{29000, 32000, 29000, 29000}, got)

	_, err = Draw(scores, []int{0, 1, 2, 3, 0}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
}

func TestAbort(t *testing.T) {
	got, err := Abort([]int{30000, 30000, 30000, 30000}, []int{0, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{29000, 30000, 30000, 29000}, got)
}

func TestChombo(t *testing.T) {
	scores := []int{30000, 30000, 30000, 30000}

	extra := Context{Rules: mustRules(t, "jpmlA"), Dealer: 1}
	got, err := Chombo(extra, scores, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{34000, 18000, 34000, 34000}, got)

	got, err = Chombo(extra, scores, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{32000, 34000, 32000, 22000}, got)

	plain := Context{Rules: mustRules(t, "ema"), Dealer: 1}
	got, err = Chombo(plain, scores, 3)
	require.NoError(t, err)
	assert.Equal(t, scores, got)
}

func TestMultiRonConservation(t *testing.T) {
	ctx := Context{Rules: mustRules(t, "ema"), Dealer: 0, Honba: 1}
	start := []int{30000, 30000, 30000, 30000}

	afterFirst, err := Ron(ctx, start, 1, 0, Hand{Han: 2, Fu: 40}, nil)
	require.NoError(t, err)
	afterSecond, err := Ron(ctx, afterFirst, 3, 0, Hand{Han: 5}, nil)
	require.NoError(t, err)

	lost := start[0] - afterSecond[0]
	gained := (afterSecond[1] - start[1]) + (afterSecond[3] - start[3])
	assert.Equal(t, lost, gained)
	assert.Equal(t, sum(start), sum(afterSecond))
}
