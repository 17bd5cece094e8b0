// internal/textlog/textlog_test.go
package textlog

import (
	"errors"
	"testing"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "A:30000 B:30000 C:30000 D:30000\n"

func registered() map[string]uuid.UUID {
	return map[string]uuid.UUID{
		"A": uuid.New(),
		"B": uuid.New(),
		"C": uuid.New(),
		"D": uuid.New(),
		"E": uuid.New(),
	}
}

func mustParse(t *testing.T, text string, reg map[string]uuid.UUID) *Log {
	t.Helper()
	log, err := Parse(text, reg)
	require.NoError(t, err)
	return log
}

func TestTokenizeSplitsPunctuation(t *testing.T) {
	st, err := Tokenize("A:1000 B : 2000\n\nRON B from A 3han 30fu (Riichi pinfu dora 2)")
	require.NoError(t, err)
	require.Len(t, st, 2)

	assert.Equal(t, 1, st[0].Line)
	assert.Equal(t, []TokenKind{Alias, ScoreDelimiter, Score, Alias, ScoreDelimiter, Score}, kinds(st[0].Tokens))
	assert.Equal(t, 2000, st[0].Tokens[5].Value)

	assert.Equal(t, 3, st[1].Line)
	assert.Equal(t, []TokenKind{
		Outcome, Alias, From, Alias, HanCount, FuCount,
		YakuStart, Yaku, Yaku, DoraDelimiter, DoraCount, YakuEnd,
	}, kinds(st[1].Tokens))
	assert.Equal(t, "ron", st[1].Tokens[0].Text)
	assert.Equal(t, models.YakuRiichi, st[1].Tokens[7].Value)
}

func TestTokenizeRiichiOutsideYakuListIsKeyword(t *testing.T) {
	st, err := Tokenize("tsumo A 1han 30fu (riichi) riichi A")
	require.NoError(t, err)
	toks := st[0].Tokens
	assert.Equal(t, Yaku, toks[5].Kind)
	assert.Equal(t, Riichi, toks[7].Kind)
}

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestParseSingleRon(t *testing.T) {
	reg := registered()
	log := mustParse(t, "A:1000 B:1000 C:1000 D:1000\nron B from A 3han 30fu", reg)

	assert.Equal(t, []string{"A", "B", "C", "D"}, log.Aliases)
	assert.Equal(t, []uuid.UUID{reg["A"], reg["B"], reg["C"], reg["D"]}, log.Players)
	assert.Equal(t, map[string]int{"A": 1000, "B": 1000, "C": 1000, "D": 1000}, log.Declared)
	require.Len(t, log.Rounds, 1)
	assert.Equal(t, 2, log.Rounds[0].Line)

	ron, ok := log.Rounds[0].Outcome.(models.Ron)
	require.True(t, ok)
	assert.Equal(t, reg["B"], ron.Winner)
	assert.Equal(t, reg["A"], ron.Loser)
	assert.Equal(t, 3, ron.Han)
	assert.Equal(t, 30, ron.Fu)
	assert.Empty(t, ron.Riichi)
	assert.Equal(t, 1, log.Counts.Ron)
}

func TestParseYakuAndDora(t *testing.T) {
	reg := registered()
	log := mustParse(t, header+
		"ron B from A 3han 30fu (riichi pinfu dora 2) riichi B C\n"+
		"tsumo C 2han 40fu (tanyao dora)\n"+
		"tsumo D yakuman (kokushi)", reg)

	require.Len(t, log.Rounds, 3)
	ron := log.Rounds[0].Outcome.(models.Ron)
	assert.Equal(t, []int{models.YakuRiichi, models.YakuPinfu}, ron.Yaku)
	assert.Equal(t, 2, ron.Dora)
	assert.Equal(t, []uuid.UUID{reg["B"], reg["C"]}, ron.Riichi)

	tsumo := log.Rounds[1].Outcome.(models.Tsumo)
	assert.Equal(t, []int{models.YakuTanyao}, tsumo.Yaku)
	assert.Equal(t, 1, tsumo.Dora)

	yakuman := log.Rounds[2].Outcome.(models.Tsumo)
	assert.True(t, yakuman.Yakuman)
	assert.Equal(t, 2, log.Counts.Tsumo)
	assert.Equal(t, 1, log.Counts.Yakuman)
}

func TestParseMultiRon(t *testing.T) {
	reg := registered()

	t.Run("loser after first winner", func(t *testing.T) {
		log := mustParse(t, header+"ron B from A 2han 30fu also D 1han 30fu riichi D C", reg)
		mr, ok := log.Rounds[0].Outcome.(models.MultiRon)
		require.True(t, ok)
		assert.Equal(t, reg["A"], mr.Loser)
		require.Len(t, mr.Wins, 2)
		assert.Equal(t, reg["B"], mr.Wins[0].Winner)
		assert.Equal(t, reg["D"], mr.Wins[1].Winner)
		// B sits next to A, so C's bet goes to B and D keeps their own
		assert.Equal(t, []uuid.UUID{reg["C"]}, mr.Wins[0].Riichi)
		assert.Equal(t, []uuid.UUID{reg["D"]}, mr.Wins[1].Riichi)
		assert.Equal(t, 1, log.Counts.DoubleRon)
		assert.Equal(t, 2, log.Counts.Ron)
	})

	t.Run("loser named last", func(t *testing.T) {
		log := mustParse(t, header+"ron B 2han 30fu also C 3han 30fu also D from A 1han 30fu", reg)
		mr := log.Rounds[0].Outcome.(models.MultiRon)
		assert.Equal(t, reg["A"], mr.Loser)
		assert.Len(t, mr.Wins, 3)
		assert.Equal(t, 1, log.Counts.TripleRon)
	})

	t.Run("loser named twice consistently", func(t *testing.T) {
		log := mustParse(t, header+"ron B from A 2han 30fu also C from A 3han 30fu", reg)
		mr := log.Rounds[0].Outcome.(models.MultiRon)
		assert.Len(t, mr.Wins, 2)
		for _, w := range mr.Wins {
			assert.Equal(t, reg["A"], w.Loser)
		}
	})

	t.Run("yakuman win counts only as yakuman", func(t *testing.T) {
		log := mustParse(t, header+"ron B from A yakuman also C 2han 30fu", reg)
		assert.Equal(t, 1, log.Counts.Yakuman)
		assert.Equal(t, 1, log.Counts.Ron)
		assert.Equal(t, 1, log.Counts.DoubleRon)
	})
}

func TestParseDrawTempai(t *testing.T) {
	reg := registered()
	log := mustParse(t, header+
		"draw tempai A C riichi C\n"+
		"draw tempai all\n"+
		"draw tempai nobody\n"+
		"abort riichi A B", reg)

	d := log.Rounds[0].Outcome.(models.Draw)
	assert.Equal(t, []uuid.UUID{reg["A"], reg["C"]}, d.Tempai)
	assert.Equal(t, []uuid.UUID{reg["C"]}, d.Riichi)
	assert.Len(t, log.Rounds[1].Outcome.(models.Draw).Tempai, 4)
	assert.Empty(t, log.Rounds[2].Outcome.(models.Draw).Tempai)

	a := log.Rounds[3].Outcome.(models.AbortiveDraw)
	assert.Equal(t, []uuid.UUID{reg["A"], reg["B"]}, a.Riichi)
	assert.Equal(t, 3, log.Counts.Draw)
	assert.Equal(t, 1, log.Counts.Abort)
}

func TestParseErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		text string
		code int
	}{
		{"three players", "A:1000 B:1000 C:1000", 100},
		{"unregistered player", "A:1000 B:1000 C:1000 X:1000", 101},
		{"duplicate player", "A:1000 A:1000 B:1000 C:1000", 102},
		{"dangling alias in score line", "A:1000 B:1000 C:1000 D", 106},
		{"bad score", "A:1000 B:1000 C:1000 D:lots", 106},
		{"round before score line", "ron B from A 1han 30fu", 203},
		{"bad statement start", "30fu ron B", 202},
		{"unrecognized token", header + "ron B from A 1han 30fu ???", 201},
		{"missing from", header + "ron B A 1han 30fu", 103},
		{"unknown winner", header + "ron E from A 1han 30fu", 104},
		{"unknown loser", header + "ron B from E 1han 30fu", 105},
		{"missing han", header + "ron B from A 30fu", 206},
		{"missing fu", header + "ron B from A 2han", 206},
		{"unknown riichi bettor", header + "tsumo B 1han 30fu riichi E", 107},
		{"empty riichi", header + "tsumo B 1han 30fu riichi", 108},
		{"unknown tempai player", header + "draw tempai E", 117},
		{"tempai not given", header + "draw", 118},
		{"all with aliases", header + "draw tempai all A", 119},
		{"nobody with aliases", header + "draw tempai A nobody", 120},
		{"two losers", header + "ron B from A 1han 30fu also C from D 1han 30fu", 204},
		{"bet declared in two segments", header + "ron B from A 1han 30fu riichi C also D 1han 30fu riichi C", 107},
		{"bet declared twice", header + "tsumo B 1han 30fu riichi C C", 107},
		{"trailing from in multi-ron", header + "ron B from A 1han 30fu also C 1han 30fu from", 103},
		{"unclosed yaku list", header + "ron B from A 1han 30fu (riichi", 210},
		{"stray number in yaku list", header + "ron B from A 1han 30fu (riichi 2)", 211},
		{"unknown yaku", header + "ron B from A 1han 30fu (foo)", 212},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, registered())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrMalformedInput), err.Error())
			assert.Equal(t, tt.code, errs.CodeOf(err), err.Error())
		})
	}
}

func TestParseErrorCarriesLine(t *testing.T) {
	_, err := Parse(header+"\ntsumo B 1han 30fu\nron B from E 1han 30fu", registered())
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 4, e.Line)
	assert.Equal(t, "E", e.Token)
}

func TestReplayReportsMismatch(t *testing.T) {
	rules, err := ruleset.Get("jpmlA")
	require.NoError(t, err)

	log := mustParse(t, "A:1000 B:1000 C:1000 D:1000\nron B from A 3han 30fu", registered())
	replay, err := log.Replay(rules)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConsistencyMismatch))

	var mismatch *errs.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 1000, mismatch.Declared["B"])
	assert.Equal(t, 33900, mismatch.Computed["B"])
	assert.Equal(t, 26100, mismatch.Computed["A"])

	require.NotNil(t, replay)
	assert.True(t, replay.State.IsFinished())
}

func TestReplayMatchesTrailingScoreLine(t *testing.T) {
	rules, err := ruleset.Get("ema")
	require.NoError(t, err)

	log := mustParse(t, header+
		"draw tempai A B riichi A\n"+
		"tsumo C 1han 30fu riichi C\n"+
		"A:29900 B:31100 C:30900 D:28100", registered())

	replay, err := log.Replay(rules)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 29900, "B": 31100, "C": 30900, "D": 28100}, replay.Scores)
	assert.Len(t, replay.Records, 2)
	assert.Equal(t, 1, replay.Records[1].Honba)
	assert.Zero(t, replay.State.RiichiBets())
	assert.Equal(t, 1, replay.Counts.Draw)
	assert.Equal(t, 1, replay.Counts.Tsumo)
}

func TestReplayAnnotatesRuleViolation(t *testing.T) {
	rules, err := ruleset.Get("ema")
	require.NoError(t, err)

	log := mustParse(t, header+"tsumo B 1han 30fu\nabort", registered())
	_, err = log.Replay(rules)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 3, e.Line)
}

func TestReplaySelfRonIsRejected(t *testing.T) {
	rules, err := ruleset.Get("jpmlA")
	require.NoError(t, err)

	log := mustParse(t, header+"ron B from B 1han 30fu", registered())
	_, err = log.Replay(rules)
	assert.True(t, errors.Is(err, errs.ErrInvalidOperation))
}
