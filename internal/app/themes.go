package app

import (
	"strings"

	"golang.org/x/text/cases"

	"bank_reviews/internal/domain"
)

// ThemeTagger assigns themes by keyword substring. A keyword also matches
// inside a longer word ("access" in "inaccessible"); that false-positive risk
// is accepted.
type ThemeTagger struct {
	themes []foldedTheme
}

type foldedTheme struct {
	name     string
	keywords []string
}

func NewThemeTagger(lexicon []domain.Theme) *ThemeTagger {
	f := cases.Fold()
	tt := &ThemeTagger{themes: make([]foldedTheme, 0, len(lexicon))}
	seen := make(map[string]struct{}, len(lexicon))
	for _, t := range lexicon {
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}
		ft := foldedTheme{name: t.Name}
		for _, k := range t.Keywords {
			if k = f.String(strings.TrimSpace(k)); k != "" {
				ft.keywords = append(ft.keywords, k)
			}
		}
		tt.themes = append(tt.themes, ft)
	}
	return tt
}

// Tag returns matched themes in lexicon order, or exactly [Other].
func (t *ThemeTagger) Tag(text string) domain.Themes {
	folded := cases.Fold().String(text)
	var out domain.Themes
	for _, th := range t.themes {
		for _, k := range th.keywords {
			if strings.Contains(folded, k) {
				out = append(out, th.name)
				break
			}
		}
	}
	if len(out) == 0 {
		return domain.Themes{domain.OtherTheme}
	}
	return out
}

func (t *ThemeTagger) TagAll(rs []domain.Review) []domain.ThemeResult {
	out := make([]domain.ThemeResult, len(rs))
	for i, r := range rs {
		out[i] = domain.ThemeResult{ReviewID: r.ReviewID, Themes: t.Tag(r.Text)}
	}
	return out
}
