package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cardtrade/internal/domain"
)

const sample = `
[[set]]
name = "SetA"

  [[set.card]]
  name = "Phoenix"
  rarity = "Rare"
  code = "A-001"
  id = "p1"

  [[set.card]]
  name = "Phoenix"
  rarity = "Legendary"
  code = "A-001L"
  id = "p2"

  [[set.card]]
  name = "Goblin"
  rarity = "common"

[[set]]
name = "SetB"

  [[set.card]]
  name = "Phoenix Hatchling"
  rarity = "uncommon"
  code = "B-010"
`

func newSample(t *testing.T) *Catalog {
	t.Helper()

	c, err := Parse(strings.NewReader(sample), 16)
	require.NoError(t, err)

	return c
}

func TestParse(t *testing.T) {
	c := newSample(t)
	assert.Equal(t, 4, c.Len())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("[[set]]\nname = \"A\"\ncolour = \"red\"\n"), 0)
	require.Error(t, err)
}

func TestNewRejectsIncompleteCards(t *testing.T) {
	_, err := New([]Set{{Name: "A", Cards: []Card{{Name: "X"}}}}, 0)
	require.Error(t, err)

	_, err = New([]Set{{Name: " "}}, 0)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"), 0)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	c := newSample(t)

	tests := []struct {
		name    string
		value   string
		want    domain.Printing
		wantErr error
	}{
		{
			name:  "exact printing",
			value: "SetA|||Phoenix|||A-001|||p1",
			want:  domain.NewPrinting("Phoenix", "rare", "SetA", "A-001", "p1"),
		},
		{
			name:  "narrowed by id only",
			value: "SetA|||Phoenix||||||p2",
			want:  domain.NewPrinting("Phoenix", "legendary", "SetA", "A-001L", "p2"),
		},
		{
			name:  "card without code or id",
			value: "SetA|||Goblin",
			want:  domain.NewPrinting("Goblin", "common", "SetA", "", ""),
		},
		{name: "ambiguous", value: "SetA|||Phoenix", wantErr: ErrAmbiguousPrinting},
		{name: "unknown set", value: "SetZ|||Phoenix", wantErr: ErrUnknownSet},
		{name: "unknown card", value: "SetB|||Goblin", wantErr: ErrUnknownCard},
		{name: "wrong code", value: "SetA|||Phoenix|||nope", wantErr: ErrUnknownCard},
		{name: "wrong id", value: "SetA|||Phoenix|||A-001|||p2", wantErr: ErrUnknownCard},
		{name: "empty", value: "", wantErr: ErrUnknownSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Resolve(tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, errors.Is(err, domain.ErrInvalidItem))
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %+v", got)
		})
	}
}

func TestResolveUsesCache(t *testing.T) {
	c := newSample(t)

	first, err := c.Resolve("SetA|||Goblin")
	require.NoError(t, err)
	assert.True(t, c.cache.Contains("resolve:SetA|||Goblin"))

	second, err := c.Resolve("SetA|||Goblin")
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestSuggest(t *testing.T) {
	c := newSample(t)

	got := c.Suggest("phoe", 10)
	require.Len(t, got, 3)
	for _, s := range got {
		assert.Contains(t, strings.ToLower(s.Label), "phoenix")

		_, err := c.Resolve(s.Value)
		require.NoError(t, err, "suggestion %q must resolve", s.Value)
	}

	assert.Empty(t, c.Suggest("zzzz", 10))
}

func TestSuggestEmptyQueryListsCatalog(t *testing.T) {
	c := newSample(t)

	got := c.Suggest("", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "SetA|||Phoenix|||A-001|||p1", got[0].Value)
	assert.Equal(t, "Phoenix (set:SetA) [Rare]", got[0].Label)
}

func TestSuggestCapsLimit(t *testing.T) {
	sets := []Set{{Name: "Big"}}
	for i := 0; i < 40; i++ {
		sets[0].Cards = append(sets[0].Cards, Card{Name: "Slime", Rarity: "common", ID: strings.Repeat("x", i+1)})
	}

	c, err := New(sets, 0)
	require.NoError(t, err)

	got := c.Suggest("slime", 100)
	assert.Len(t, got, MaxSuggestions)
	for _, s := range got {
		assert.LessOrEqual(t, len(s.Value), maxChoiceLength)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("a", maxChoiceLength-1) + "⇄"
	got := truncate(s)
	assert.Equal(t, strings.Repeat("a", maxChoiceLength-1), got)
}
