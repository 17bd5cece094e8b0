// cmd/replay/main.go replays text logs offline and checks their declared scores.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Furiten/riichi-api/internal/rating"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/Furiten/riichi-api/internal/textlog"
	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// aliasSpace derives stable player ids from aliases.
var aliasSpace = uuid.MustParse("6f1b8f36-3a52-4c1e-9a55-1f1c6b0f0d5e")

// fileResult is the outcome of replaying one log file.
type fileResult struct {
	Path    string
	Aliases []string
	Scores  map[string]int
	Places  map[string]rating.PlaceResult
	Counts  textlog.Counts
	Err     error
}

func main() {
	rulesetName := flag.String("ruleset", "jpmlA", "ruleset the logs were played under ("+strings.Join(ruleset.Names(), ", ")+")")
	players := flag.String("players", "", "comma separated registered aliases; defaults to the aliases of each log's score line")
	quiet := flag.Bool("q", false, "hide the progress bar")
	flag.Parse()

	logger := logrus.New()
	if flag.NArg() == 0 {
		logger.Fatal("usage: replay [-ruleset name] [-players a,b,c,d] log.txt|log.txt.gz|log.txt.zst...")
	}
	rules, err := ruleset.Get(*rulesetName)
	if err != nil {
		logger.Fatalf("ruleset: %v", err)
	}

	var bar *pb.ProgressBar
	if !*quiet && flag.NArg() > 1 {
		bar = pb.StartNew(flag.NArg())
	}
	var results []fileResult
	for _, path := range flag.Args() {
		results = append(results, replayFile(path, rules, *players))
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	failed := render(os.Stdout, results)
	if failed > 0 {
		logger.Errorf("%d of %d logs failed", failed, len(results))
		os.Exit(1)
	}
}

// readLog reads a log file, decompressing .gz and .zst archives.
func readLog(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch filepath.Ext(path) {
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer gr.Close()
		r = gr
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

func replayFile(path string, rules ruleset.Ruleset, players string) fileResult {
	res := fileResult{Path: path}
	data, err := readLog(path)
	if err != nil {
		res.Err = err
		return res
	}
	res = replayText(string(data), rules, players)
	res.Path = path
	return res
}

// replayText parses and replays one log. Placement is filled in only for a
// log whose declared scores match.
func replayText(text string, rules ruleset.Ruleset, players string) fileResult {
	var res fileResult
	registered, err := registry(text, players)
	if err != nil {
		res.Err = err
		return res
	}
	parsed, err := textlog.Parse(text, registered)
	if err != nil {
		res.Err = err
		return res
	}
	res.Aliases = parsed.Aliases
	res.Counts = parsed.Counts

	replay, err := parsed.Replay(rules)
	if replay != nil {
		res.Scores = replay.Scores
	}
	if err != nil {
		res.Err = err
		return res
	}

	placed, err := rating.Finalize(replay.State)
	if err != nil {
		res.Err = err
		return res
	}
	byID := make(map[uuid.UUID]rating.PlaceResult, len(placed))
	for _, p := range placed {
		byID[p.PlayerID] = p
	}
	res.Places = make(map[string]rating.PlaceResult, len(placed))
	for alias, id := range parsed.PlayerIDs() {
		res.Places[alias] = byID[id]
	}
	return res
}

// registry builds the alias table Parse checks against. Without an explicit
// list every alias of the first score line counts as registered.
func registry(text, players string) (map[string]uuid.UUID, error) {
	var aliases []string
	if players != "" {
		for _, a := range strings.Split(players, ",") {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, a)
			}
		}
	} else {
		stmts, err := textlog.Tokenize(text)
		if err != nil {
			return nil, err
		}
		for _, st := range stmts {
			if len(st.Tokens) > 1 && st.Tokens[0].Kind == textlog.Alias && st.Tokens[1].Kind == textlog.ScoreDelimiter {
				for _, t := range st.Tokens {
					if t.Kind == textlog.Alias {
						aliases = append(aliases, t.Text)
					}
				}
				break
			}
		}
	}
	out := make(map[string]uuid.UUID, len(aliases))
	for _, a := range aliases {
		out[a] = uuid.NewSHA1(aliasSpace, []byte(a))
	}
	return out, nil
}

// render prints one block per file and returns the number of failed files.
// Aliases may be CJK, so columns are padded by display width.
func render(w io.Writer, results []fileResult) int {
	p := message.NewPrinter(language.English)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s: FAIL %v\n", r.Path, r.Err)
		} else {
			fmt.Fprintf(w, "%s: OK\n", r.Path)
		}
		if len(r.Scores) == 0 {
			continue
		}

		width := 0
		for _, a := range r.Aliases {
			width = max(width, runewidth.StringWidth(a))
		}
		aliases := append([]string(nil), r.Aliases...)
		if r.Places != nil {
			sort.SliceStable(aliases, func(i, j int) bool { return r.Places[aliases[i]].Place < r.Places[aliases[j]].Place })
		}
		for _, a := range aliases {
			p.Fprintf(w, "  %s  %8d", runewidth.FillRight(a, width), r.Scores[a])
			if pr, ok := r.Places[a]; ok {
				p.Fprintf(w, "  #%d  %+7.1f  rating %+.1f", pr.Place, pr.NormalizedScore, pr.RatingDelta)
			}
			fmt.Fprintln(w)
		}
		c := r.Counts
		fmt.Fprintf(w, "  ron %d, tsumo %d, draw %d, abort %d, chombo %d, double ron %d, triple ron %d, yakuman %d\n",
			c.Ron, c.Tsumo, c.Draw, c.Abort, c.Chombo, c.DoubleRon, c.TripleRon, c.Yakuman)
	}
	return failed
}
