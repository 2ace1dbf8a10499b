package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank_reviews/internal/domain"
)

func TestLoadCatalog_Default(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	banks := c.Banks()
	require.Len(t, banks, 3)
	assert.Equal(t, "CBE", banks[0].Name)

	themes := c.Themes()
	require.Len(t, themes, 7)
	assert.Equal(t, "Login Issues", themes[0].Name)
	assert.Equal(t, "Features", themes[6].Name)

	for _, raw := range []string{"cbe", "CBEBirr Plus", "prod.cbe.birr", "  Dashen "} {
		_, ok := c.Resolve(raw)
		assert.True(t, ok, "resolve %q", raw)
	}
	_, ok := c.Resolve("Awash")
	assert.False(t, ok)
}

func TestLoadCatalog_File(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "catalog.yaml")
	body := `
banks:
  - {id: 7, name: ABC, app_name: ABC Mobile, app_id: com.abc}
themes:
  - {name: Fees, keywords: [fee, charge]}
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	c, err := LoadCatalog(p)
	require.NoError(t, err)
	b, ok := c.ByID(7)
	require.True(t, ok)
	assert.Equal(t, "ABC Mobile", b.AppName)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"no banks", "themes: [{name: A, keywords: [a]}]", domain.ErrNoBanks},
		{"no themes", "banks: [{id: 1, name: A}]", domain.ErrNoThemes},
		{"dup id", "banks: [{id: 1, name: A}, {id: 1, name: B}]\nthemes: [{name: A, keywords: [a]}]", domain.ErrDuplicateBank},
		{"empty theme", "banks: [{id: 1, name: A}]\nthemes: [{name: A}]", domain.ErrInvalidTheme},
		{"comma in theme", "banks: [{id: 1, name: A}]\nthemes: [{name: 'Fees, Charges', keywords: [fee]}]", domain.ErrInvalidTheme},
		{"sentinel theme", "banks: [{id: 1, name: A}]\nthemes: [{name: other, keywords: [misc]}]", domain.ErrInvalidTheme},
		{"dup theme", "banks: [{id: 1, name: A}]\nthemes: [{name: Fees, keywords: [fee]}, {name: ' fees ', keywords: [charge]}]", domain.ErrDuplicateTheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCatalog_AccessorsReturnCopies(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	themes := c.Themes()
	themes[0].Keywords[0] = "mutated"
	banks := c.Banks()
	banks[0].Name = "mutated"

	assert.Equal(t, "login", c.Themes()[0].Keywords[0])
	assert.Equal(t, "CBE", c.Banks()[0].Name)
}
