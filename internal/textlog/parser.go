// internal/textlog/parser.go
package textlog

import (
	"errors"
	"strings"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/game"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/google/uuid"
)

// Counts tallies parsed statements by kind.
type Counts struct {
	Ron       int `json:"ron"`
	Tsumo     int `json:"tsumo"`
	Draw      int `json:"draw"`
	Abort     int `json:"abort"`
	Chombo    int `json:"chombo"`
	DoubleRon int `json:"doubleRon"`
	TripleRon int `json:"tripleRon"`
	Yakuman   int `json:"yakuman"`
}

// Round is an outcome together with the log line it came from.
type Round struct {
	Line    int
	Outcome models.Outcome
}

// Log is a parsed text log.
type Log struct {
	Aliases  []string       // seating order, as listed in the header
	Players  []uuid.UUID    // ids matching Aliases
	Declared map[string]int // scores of the last score line
	Rounds   []Round
	Counts   Counts
}

// PlayerIDs maps aliases to player ids.
func (l *Log) PlayerIDs() map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(l.Aliases))
	for i, a := range l.Aliases {
		out[a] = l.Players[i]
	}
	return out
}

// parseContext is threaded through every statement parser.
type parseContext struct {
	registered   map[string]uuid.UUID
	participants map[string]uuid.UUID // aliases declared in the header
	log          *Log
}

type statementParser func(ctx *parseContext, st Statement) error

// outcomeParsers maps the keyword opening a statement to its parser.
var outcomeParsers = map[string]statementParser{
	"ron":    parseRon,
	"tsumo":  parseTsumo,
	"draw":   parseDraw,
	"abort":  parseAbort,
	"chombo": parseChombo,
}

// Parse reads a text log. registered maps every alias known to the event to its
// player id; the header must use four of them.
func Parse(text string, registered map[string]uuid.UUID) (*Log, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.Malformed(106, "", "log is empty")
	}
	statements, err := Tokenize(text)
	if err != nil {
		return nil, err
	}

	ctx := &parseContext{registered: registered, log: &Log{}}
	for _, st := range statements {
		if err := parseStatement(ctx, st); err != nil {
			var e *errs.Error
			if errors.As(err, &e) && e.Line == 0 {
				return nil, e.AtLine(st.Line)
			}
			return nil, err
		}
	}
	if ctx.participants == nil {
		return nil, errs.Malformed(100, "", "log has no score line")
	}
	return ctx.log, nil
}

func parseStatement(ctx *parseContext, st Statement) error {
	first := st.Tokens[0]
	switch first.Kind {
	case Alias:
		return parseScoreLine(ctx, st)
	case Outcome:
		if ctx.participants == nil {
			return errs.Malformed(203, first.Text, "round recorded before the score line")
		}
		parse, ok := outcomeParsers[first.Text]
		if !ok {
			return errs.Malformed(106, first.Text, "unknown outcome")
		}
		return parse(ctx, st)
	default:
		return errs.Malformed(202, first.Text, "cannot parse the start of line %q", st.Text())
	}
}

// parseScoreLine reads `alias:score` pairs. The first score line declares the
// players and their seating; a later one must list the same players.
func parseScoreLine(ctx *parseContext, st Statement) error {
	tokens := st.Tokens
	if len(tokens)%3 != 0 {
		return errs.Malformed(106, "", "malformed score line %q", st.Text())
	}

	declared := make(map[string]int, 4)
	var aliases []string
	for i := 0; i < len(tokens); i += 3 {
		player, delim, score := tokens[i], tokens[i+1], tokens[i+2]
		if player.Kind != Alias || delim.Kind != ScoreDelimiter || score.Kind != Score {
			return errs.Malformed(106, player.Text, "malformed score line entry %s %s %s", player, delim, score)
		}
		if _, ok := ctx.registered[player.Text]; !ok {
			return errs.Malformed(101, player.Text, "player is not registered")
		}
		if _, dup := declared[player.Text]; dup {
			return errs.Malformed(102, player.Text, "player is listed twice")
		}
		declared[player.Text] = score.Value
		aliases = append(aliases, player.Text)
	}
	if len(aliases) != 4 {
		return errs.Malformed(100, "", "score line lists %d players, expected 4", len(aliases))
	}

	if ctx.participants == nil {
		ctx.participants = make(map[string]uuid.UUID, 4)
		for _, a := range aliases {
			ctx.participants[a] = ctx.registered[a]
			ctx.log.Aliases = append(ctx.log.Aliases, a)
			ctx.log.Players = append(ctx.log.Players, ctx.registered[a])
		}
	} else {
		for _, a := range aliases {
			if _, ok := ctx.participants[a]; !ok {
				return errs.Malformed(106, a, "player is not seated in this log")
			}
		}
	}
	ctx.log.Declared = declared
	return nil
}

func (ctx *parseContext) player(t Token, code int, role string) (uuid.UUID, error) {
	if t.Kind != Alias {
		return uuid.Nil, errs.Malformed(code, t.Text, "expected %s alias", role)
	}
	id, ok := ctx.participants[t.Text]
	if !ok {
		return uuid.Nil, errs.Malformed(code, t.Text, "%s is not listed in the score line", role)
	}
	return id, nil
}

func (ctx *parseContext) addRound(st Statement, o models.Outcome) {
	ctx.log.Rounds = append(ctx.log.Rounds, Round{Line: st.Line, Outcome: o})
}

func findByKind(tokens []Token, kind TokenKind) (Token, bool) {
	for _, t := range tokens {
		if t.Kind == kind {
			return t, true
		}
	}
	return Token{}, false
}

// riichiBettors reads the aliases following the riichi keyword.
func (ctx *parseContext) riichiBettors(tokens []Token) ([]uuid.UUID, error) {
	return ctx.collectBettors(tokens, make(map[uuid.UUID]bool))
}

// collectBettors is riichiBettors sharing seen across the segments of one
// multi-ron, so a player can bet only once per line.
func (ctx *parseContext) collectBettors(tokens []Token, seen map[uuid.UUID]bool) ([]uuid.UUID, error) {
	var out []uuid.UUID
	started := false
	for _, t := range tokens {
		if t.Kind == Riichi {
			started = true
			continue
		}
		if !started {
			continue
		}
		if t.Kind != Alias {
			break
		}
		id, ok := ctx.participants[t.Text]
		if !ok {
			return nil, errs.Malformed(107, t.Text, "riichi bettor is not listed in the score line")
		}
		if seen[id] {
			return nil, errs.Malformed(107, t.Text, "riichi bettor is declared twice")
		}
		seen[id] = true
		out = append(out, id)
	}
	if started && len(out) == 0 {
		return nil, errs.Malformed(108, "riichi", "riichi keyword is not followed by any player")
	}
	return out, nil
}

// tempaiPlayers reads the aliases following the tempai keyword, or one of the
// terminal words all and nobody.
func (ctx *parseContext) tempaiPlayers(tokens []Token) ([]uuid.UUID, error) {
	out := []uuid.UUID{}
	started := false
	for i, t := range tokens {
		if t.Kind == Tempai {
			started = true
			continue
		}
		if !started {
			continue
		}
		switch t.Kind {
		case Alias:
			id, ok := ctx.participants[t.Text]
			if !ok {
				return nil, errs.Malformed(117, t.Text, "tempai player is not listed in the score line")
			}
			out = append(out, id)
			continue
		case All, Nobody:
			code := 119
			if t.Kind == Nobody {
				code = 120
			}
			if len(out) > 0 || (i+1 < len(tokens) && tokens[i+1].Kind == Alias) {
				return nil, errs.Malformed(code, t.Text, "%s must be the only word after tempai", t.Text)
			}
			if t.Kind == Nobody {
				return []uuid.UUID{}, nil
			}
			return append(out, ctx.log.Players...), nil
		}
		break
	}
	if len(out) == 0 {
		return nil, errs.Malformed(118, "", "tempai players are not specified")
	}
	return out, nil
}

// win reads han, fu, yakuman and the yaku list of one winning hand.
func (ctx *parseContext) win(tokens []Token) (models.Win, error) {
	var w models.Win
	if _, ok := findByKind(tokens, Yakuman); ok {
		w.Yakuman = true
	}
	han, hasHan := findByKind(tokens, HanCount)
	fu, hasFu := findByKind(tokens, FuCount)
	if hasHan {
		w.Han = han.Value
	}
	if hasFu {
		w.Fu = fu.Value
	}
	switch {
	case w.Yakuman:
	case !hasHan:
		return models.Win{}, errs.Malformed(206, "", "hand value is missing: expected Nhan or yakuman")
	case w.Han < 5 && !hasFu:
		return models.Win{}, errs.Malformed(206, han.Text, "fu are required below 5 han")
	}

	yaku, dora, err := parseYaku(tokens)
	if err != nil {
		return models.Win{}, err
	}
	w.Yaku = yaku
	w.Dora = dora
	return w, nil
}

// parseYaku reads the optional yaku list. A bare dora delimiter counts as one dora.
func parseYaku(tokens []Token) ([]int, int, error) {
	var (
		yaku    []int
		dora    int
		started bool
		closed  bool
	)
	for _, t := range tokens {
		switch {
		case t.Kind == YakuStart:
			if started {
				return nil, 0, errs.Malformed(211, t.Text, "only one yaku list is allowed per hand")
			}
			started = true
		case t.Kind == YakuEnd:
			closed = true
		case !started || closed:
		case t.Kind == Yaku:
			yaku = append(yaku, t.Value)
		case t.Kind == DoraDelimiter:
			dora = 1
		case t.Kind == DoraCount:
			dora = t.Value
		default:
			return nil, 0, errs.Malformed(211, t.Text, "token is not a yaku")
		}
	}
	if started && !closed {
		return nil, 0, errs.Malformed(210, "", "yaku list is not closed")
	}
	return yaku, dora, nil
}

func parseRon(ctx *parseContext, st Statement) error {
	if _, multi := findByKind(st.Tokens, Also); multi {
		return parseMultiRon(ctx, st)
	}
	tokens := st.Tokens
	if len(tokens) < 4 {
		return errs.Malformed(103, "", "ron must name a winner and the player it was taken from")
	}
	winner, err := ctx.player(tokens[1], 104, "winner")
	if err != nil {
		return err
	}
	if tokens[2].Kind != From {
		return errs.Malformed(103, tokens[2].Text, "expected 'from' after the winner")
	}
	loser, err := ctx.player(tokens[3], 105, "loser")
	if err != nil {
		return err
	}
	w, err := ctx.win(tokens)
	if err != nil {
		return err
	}
	riichi, err := ctx.riichiBettors(tokens)
	if err != nil {
		return err
	}

	ctx.addRound(st, models.Ron{Winner: winner, Loser: loser, Riichi: riichi, Win: w})
	ctx.log.Counts.Ron++
	if w.Yakuman {
		ctx.log.Counts.Yakuman++
	}
	return nil
}

// splitMultiRon cuts `ron A from L ... also B [from L] ...` into one token run
// per winner, dropping the outcome keyword and every `from L`.
func splitMultiRon(tokens []Token) ([][]Token, Token, error) {
	var loser Token
	for i, t := range tokens {
		if t.Kind == From {
			if i+1 >= len(tokens) || tokens[i+1].Kind != Alias {
				return nil, Token{}, errs.Malformed(103, t.Text, "expected the player the ron was taken from")
			}
			loser = tokens[i+1]
			break
		}
	}
	if loser.Kind != Alias {
		return nil, Token{}, errs.Malformed(103, "", "multi-ron does not say whom it was taken from")
	}

	chunks := [][]Token{{}}
	for i := 1; i < len(tokens); i++ {
		t := tokens[i]
		switch t.Kind {
		case From:
			if i+1 >= len(tokens) || tokens[i+1].Kind != Alias {
				return nil, Token{}, errs.Malformed(103, t.Text, "expected the player the ron was taken from")
			}
			if tokens[i+1].Text != loser.Text {
				return nil, Token{}, errs.Malformed(204, tokens[i+1].Text, "multi-ron names more than one loser")
			}
			i++ // skip the loser alias
		case Also:
			chunks = append(chunks, []Token{})
		default:
			chunks[len(chunks)-1] = append(chunks[len(chunks)-1], t)
		}
	}
	return chunks, loser, nil
}

func parseMultiRon(ctx *parseContext, st Statement) error {
	chunks, loserTok, err := splitMultiRon(st.Tokens)
	if err != nil {
		return err
	}
	if len(chunks) < 2 || len(chunks) > 3 {
		return errs.Malformed(204, "also", "multi-ron needs 2 or 3 winners, got %d", len(chunks))
	}
	loser, err := ctx.player(loserTok, 105, "loser")
	if err != nil {
		return err
	}

	winners := make([]uuid.UUID, 0, len(chunks))
	wins := make([]models.Win, 0, len(chunks))
	var bettors []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			return errs.Malformed(104, "also", "expected a winner after 'also'")
		}
		winner, err := ctx.player(chunk[0], 104, "winner")
		if err != nil {
			return err
		}
		for _, w := range winners {
			if w == winner {
				return errs.Malformed(104, chunk[0].Text, "player wins twice in one multi-ron")
			}
		}
		if winner == loser {
			return errs.Malformed(104, chunk[0].Text, "winner and loser must differ")
		}
		w, err := ctx.win(chunk)
		if err != nil {
			return err
		}
		riichi, err := ctx.collectBettors(chunk, seen)
		if err != nil {
			return err
		}
		winners = append(winners, winner)
		wins = append(wins, w)
		bettors = append(bettors, riichi...)
	}

	assigned, err := game.AssignRiichiBets(ctx.log.Players, loser, winners, bettors)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidOperation) {
			return errs.Malformed(205, loserTok.Text, "cannot assign riichi bets: %v", err)
		}
		return err
	}

	mr := models.MultiRon{Loser: loser}
	for i, winner := range winners {
		mr.Wins = append(mr.Wins, models.Ron{
			Winner: winner,
			Loser:  loser,
			Riichi: assigned.Bets[winner],
			Win:    wins[i],
		})
		if wins[i].Yakuman {
			ctx.log.Counts.Yakuman++
		} else {
			ctx.log.Counts.Ron++
		}
	}
	ctx.addRound(st, mr)
	if len(chunks) == 2 {
		ctx.log.Counts.DoubleRon++
	} else {
		ctx.log.Counts.TripleRon++
	}
	return nil
}

func parseTsumo(ctx *parseContext, st Statement) error {
	if len(st.Tokens) < 2 {
		return errs.Malformed(104, "", "tsumo must name a winner")
	}
	winner, err := ctx.player(st.Tokens[1], 104, "winner")
	if err != nil {
		return err
	}
	w, err := ctx.win(st.Tokens)
	if err != nil {
		return err
	}
	riichi, err := ctx.riichiBettors(st.Tokens)
	if err != nil {
		return err
	}

	ctx.addRound(st, models.Tsumo{Winner: winner, Riichi: riichi, Win: w})
	ctx.log.Counts.Tsumo++
	if w.Yakuman {
		ctx.log.Counts.Yakuman++
	}
	return nil
}

func parseDraw(ctx *parseContext, st Statement) error {
	tempai, err := ctx.tempaiPlayers(st.Tokens)
	if err != nil {
		return err
	}
	riichi, err := ctx.riichiBettors(st.Tokens)
	if err != nil {
		return err
	}
	ctx.addRound(st, models.Draw{Tempai: tempai, Riichi: riichi})
	ctx.log.Counts.Draw++
	return nil
}

func parseAbort(ctx *parseContext, st Statement) error {
	riichi, err := ctx.riichiBettors(st.Tokens)
	if err != nil {
		return err
	}
	ctx.addRound(st, models.AbortiveDraw{Riichi: riichi})
	ctx.log.Counts.Abort++
	return nil
}

func parseChombo(ctx *parseContext, st Statement) error {
	if len(st.Tokens) < 2 {
		return errs.Malformed(104, "", "chombo must name the offender")
	}
	loser, err := ctx.player(st.Tokens[1], 104, "offender")
	if err != nil {
		return err
	}
	ctx.addRound(st, models.Chombo{Loser: loser})
	ctx.log.Counts.Chombo++
	return nil
}
