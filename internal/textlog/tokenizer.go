// internal/textlog/tokenizer.go
package textlog

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/models"
)

// TokenKind classifies a lexed word.
type TokenKind int

const (
	Unknown TokenKind = iota
	Alias
	ScoreDelimiter
	Score
	Outcome
	From
	Also
	HanCount
	FuCount
	Yakuman
	Riichi
	Tempai
	All
	Nobody
	YakuStart
	YakuEnd
	Yaku
	DoraDelimiter
	DoraCount
)

var kindNames = map[TokenKind]string{
	Unknown:        "unknown",
	Alias:          "alias",
	ScoreDelimiter: "score delimiter",
	Score:          "score",
	Outcome:        "outcome",
	From:           "from",
	Also:           "also",
	HanCount:       "han count",
	FuCount:        "fu count",
	Yakuman:        "yakuman",
	Riichi:         "riichi",
	Tempai:         "tempai",
	All:            "all",
	Nobody:         "nobody",
	YakuStart:      "yaku start",
	YakuEnd:        "yaku end",
	Yaku:           "yaku",
	DoraDelimiter:  "dora",
	DoraCount:      "dora count",
}

func (k TokenKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexed word. Value holds the number of Score, HanCount, FuCount,
// DoraCount tokens and the yaku id of Yaku tokens.
type Token struct {
	Kind  TokenKind
	Text  string
	Value int
}

func (t Token) String() string { return t.Text }

// Statement is the token run of one non-empty line.
type Statement struct {
	Line   int
	Tokens []Token
}

// Text joins the statement back into a readable line.
func (s Statement) Text() string {
	words := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		words[i] = t.Text
	}
	return strings.Join(words, " ")
}

var keywords = map[string]TokenKind{
	"ron":     Outcome,
	"tsumo":   Outcome,
	"draw":    Outcome,
	"abort":   Outcome,
	"chombo":  Outcome,
	"from":    From,
	"also":    Also,
	"yakuman": Yakuman,
	"riichi":  Riichi,
	"tempai":  Tempai,
	"all":     All,
	"nobody":  Nobody,
}

var (
	aliasRe  = regexp.MustCompile(`^\p{L}[\p{L}\p{N}_.\-]*$`)
	scoreRe  = regexp.MustCompile(`^-?\d{1,6}$`)
	hanRe    = regexp.MustCompile(`^(\d{1,2})han$`)
	fuRe     = regexp.MustCompile(`^(\d{2,3})fu$`)
	numberRe = regexp.MustCompile(`^\d{1,2}$`)

	// punctuation that may be glued to neighbouring words
	punct = strings.NewReplacer(":", " : ", "(", " ( ", ")", " ) ")
)

// Tokenize splits a text log into statements, one per non-empty line.
// Inside a yaku list words are read as yaku names, "dora" and a dora count;
// everywhere else they are keywords, aliases, scores or hand values.
func Tokenize(text string) ([]Statement, error) {
	var out []Statement
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := 0
	for sc.Scan() {
		line++
		words := strings.Fields(punct.Replace(sc.Text()))
		if len(words) == 0 {
			continue
		}
		tokens, err := tokenizeLine(words)
		if err != nil {
			return nil, err.AtLine(line)
		}
		out = append(out, Statement{Line: line, Tokens: tokens})
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Malformed(0, "", "failed to read log: %v", err)
	}
	return out, nil
}

type lexState struct {
	inYaku     bool
	afterDora  bool
	afterColon bool // previous token was a score delimiter
}

func tokenizeLine(words []string) ([]Token, *errs.Error) {
	var st lexState
	tokens := make([]Token, 0, len(words))
	for _, w := range words {
		var (
			t   Token
			err *errs.Error
		)
		if st.inYaku {
			t, err = st.lexYaku(w)
		} else {
			t, err = st.lexPlain(w)
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if st.inYaku {
		return nil, errs.Malformed(210, "", "yaku list is not closed")
	}
	return tokens, nil
}

func (st *lexState) lexYaku(w string) (Token, *errs.Error) {
	lower := strings.ToLower(w)
	afterDora := st.afterDora
	st.afterDora = false

	switch {
	case w == ")":
		st.inYaku = false
		return Token{Kind: YakuEnd, Text: w}, nil
	case w == "(":
		return Token{}, errs.Malformed(211, w, "yaku lists cannot be nested")
	case lower == "dora":
		st.afterDora = true
		return Token{Kind: DoraDelimiter, Text: w}, nil
	case numberRe.MatchString(w):
		if !afterDora {
			return Token{}, errs.Malformed(211, w, "a number inside a yaku list must follow dora")
		}
		n, _ := strconv.Atoi(w)
		return Token{Kind: DoraCount, Text: w, Value: n}, nil
	}
	if id, ok := models.YakuByName(lower); ok {
		return Token{Kind: Yaku, Text: w, Value: id}, nil
	}
	return Token{}, errs.Malformed(212, w, "unknown yaku")
}

func (st *lexState) lexPlain(w string) (Token, *errs.Error) {
	lower := strings.ToLower(w)
	afterColon := st.afterColon
	st.afterColon = false

	if afterColon {
		if !scoreRe.MatchString(w) {
			return Token{}, errs.Malformed(106, w, "expected a score after ':'")
		}
		n, _ := strconv.Atoi(w)
		return Token{Kind: Score, Text: w, Value: n}, nil
	}

	switch w {
	case ":":
		st.afterColon = true
		return Token{Kind: ScoreDelimiter, Text: w}, nil
	case "(":
		st.inYaku = true
		return Token{Kind: YakuStart, Text: w}, nil
	case ")":
		return Token{}, errs.Malformed(211, w, "yaku list closed without being opened")
	}

	if kind, ok := keywords[lower]; ok {
		return Token{Kind: kind, Text: lower}, nil
	}
	if m := hanRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Token{Kind: HanCount, Text: w, Value: n}, nil
	}
	if m := fuRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Token{Kind: FuCount, Text: w, Value: n}, nil
	}
	if aliasRe.MatchString(w) {
		return Token{Kind: Alias, Text: w}, nil
	}
	return Token{}, errs.Malformed(201, w, "unrecognized token")
}
