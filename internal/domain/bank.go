package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Bank struct {
	ID      int    `json:"bank_id"`
	Name    string `json:"bank_name"`
	AppName string `json:"app_name"`
	AppID   string `json:"app_id"`
}

// Theme is one lexicon entry; keyword order is kept as declared.
type Theme struct {
	Name     string
	Keywords []string
}

var (
	ErrNoBanks        = errors.New("catalog: at least one bank is required")
	ErrDuplicateBank  = errors.New("catalog: duplicate bank")
	ErrInvalidBank    = errors.New("catalog: bank needs a positive id and a name")
	ErrNoThemes       = errors.New("catalog: at least one theme is required")
	ErrInvalidTheme   = errors.New("catalog: theme needs a name and keywords")
	ErrDuplicateTheme = errors.New("catalog: duplicate theme")
)

// Catalog is the single source of truth for bank identifiers and the theme
// lexicon. It is immutable after NewCatalog; accessors return copies.
type Catalog struct {
	banks  []Bank
	themes []Theme
	lookup map[string]int // folded name/app name/app id -> index into banks
}

func NewCatalog(banks []Bank, themes []Theme) (*Catalog, error) {
	if len(banks) == 0 {
		return nil, ErrNoBanks
	}
	if len(themes) == 0 {
		return nil, ErrNoThemes
	}
	c := &Catalog{lookup: make(map[string]int, len(banks)*3)}
	ids := make(map[int]struct{}, len(banks))
	for i, b := range banks {
		if b.ID <= 0 || strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("%w: banks[%d]", ErrInvalidBank, i)
		}
		if _, dup := ids[b.ID]; dup {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateBank, b.ID)
		}
		ids[b.ID] = struct{}{}
		for _, k := range []string{b.Name, b.AppName, b.AppID} {
			k = lookupKey(k)
			if k == "" {
				continue
			}
			if j, dup := c.lookup[k]; dup && j != i {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateBank, k)
			}
			c.lookup[k] = i
		}
		c.banks = append(c.banks, b)
	}
	names := make(map[string]struct{}, len(themes))
	for i, t := range themes {
		name := strings.TrimSpace(t.Name)
		if name == "" || len(t.Keywords) == 0 {
			return nil, fmt.Errorf("%w: themes[%d]", ErrInvalidTheme, i)
		}
		// names are stored comma-joined and Other is the no-match sentinel
		if strings.Contains(name, ",") || strings.EqualFold(name, OtherTheme) {
			return nil, fmt.Errorf("%w: reserved name %q", ErrInvalidTheme, name)
		}
		if _, dup := names[lookupKey(name)]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTheme, name)
		}
		names[lookupKey(name)] = struct{}{}
		c.themes = append(c.themes, Theme{Name: name, Keywords: append([]string(nil), t.Keywords...)})
	}
	return c, nil
}

func lookupKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Resolve maps a raw bank identifier (name, app name or app id) to a bank.
func (c *Catalog) Resolve(raw string) (Bank, bool) {
	i, ok := c.lookup[lookupKey(raw)]
	if !ok {
		return Bank{}, false
	}
	return c.banks[i], true
}

func (c *Catalog) ByID(id int) (Bank, bool) {
	for _, b := range c.banks {
		if b.ID == id {
			return b, true
		}
	}
	return Bank{}, false
}

func (c *Catalog) Banks() []Bank { return append([]Bank(nil), c.banks...) }

func (c *Catalog) Themes() []Theme {
	out := make([]Theme, len(c.themes))
	for i, t := range c.themes {
		out[i] = Theme{Name: t.Name, Keywords: append([]string(nil), t.Keywords...)}
	}
	return out
}
