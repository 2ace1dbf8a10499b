package scorer

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

//go:embed lexicon.txt
var defaultLexicon []byte

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "nothing": true, "cannot": true, "cant": true,
	"dont": true, "doesnt": true, "didnt": true, "isnt": true, "wasnt": true, "wont": true,
	"without": true, "hardly": true,
}

var intensifiers = map[string]float64{
	"very": 1.3, "really": 1.3, "so": 1.3, "extremely": 1.5, "too": 1.3,
	"super": 1.3, "totally": 1.3, "absolutely": 1.5, "quite": 1.1, "slightly": 0.5,
}

// Lexicon scores text by averaging word polarities. A negation within the two
// preceding tokens flips and halves a word; an intensifier right before it
// scales it. It implements domain.PolarityScorer and is safe for concurrent use.
type Lexicon struct {
	words map[string]float64
}

// NewLexicon returns the built-in English lexicon.
func NewLexicon() *Lexicon {
	l, err := LoadLexicon(bytes.NewReader(defaultLexicon))
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return l
}

// LoadLexicon reads "word<TAB>polarity" lines; blank lines and # comments are
// skipped.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	words := map[string]float64{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 2 {
			return nil, fmt.Errorf("line %d: want word and polarity", n)
		}
		p, err := strconv.ParseFloat(f[1], 64)
		if err != nil || p < -1 || p > 1 {
			return nil, fmt.Errorf("line %d: bad polarity %q", n, f[1])
		}
		words[cases.Fold().String(f[0])] = p
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty lexicon")
	}
	return &Lexicon{words: words}, nil
}

func (l *Lexicon) Polarity(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Score(text), nil
}

// Score is Polarity without a context. Text with no known words scores 0.
func (l *Lexicon) Score(text string) float64 {
	toks := tokenize(text)
	sum, n := 0.0, 0
	for i, t := range toks {
		p, ok := l.words[t]
		if !ok {
			continue
		}
		if i > 0 {
			if m, ok := intensifiers[toks[i-1]]; ok {
				p *= m
			}
		}
		for j := max(0, i-2); j < i; j++ {
			if negations[toks[j]] {
				p *= -0.5
				break
			}
		}
		sum += p
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, sum/float64(n)))
}

// tokenize folds case, drops apostrophes so "don't" becomes "dont", and
// splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	s := cases.Fold().String(text)
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
