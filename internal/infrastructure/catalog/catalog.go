package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pelletier/go-toml/v2"
	"github.com/sahilm/fuzzy"

	"github.com/iho/cardtrade/internal/domain"
)

const (
	// ValueSeparator joins the fields of a selection value.
	ValueSeparator = "|||"

	// MaxSuggestions caps an autocomplete answer.
	MaxSuggestions = 25

	maxChoiceLength = 100
)

var (
	ErrUnknownSet        = errors.New("set not found")
	ErrUnknownCard       = errors.New("card not found in set")
	ErrAmbiguousPrinting = errors.New("multiple printings match; specify code or id")
)

// Card is one printing as listed in the catalog file.
type Card struct {
	Name   string `toml:"name"`
	Rarity string `toml:"rarity"`
	Code   string `toml:"code"`
	ID     string `toml:"id"`
}

// Set groups the printings of one pack.
type Set struct {
	Name  string `toml:"name"`
	Cards []Card `toml:"card"`
}

type file struct {
	Sets []Set `toml:"set"`
}

type entry struct {
	set  string
	card Card
}

// Suggestion is an autocomplete choice. Value feeds back into Resolve.
type Suggestion struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Catalog answers printing lookups for the HTTP layer. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	entries []entry
	bySet   map[string][]int
	names   []string
	cache   *lru.Cache
}

// Load reads a TOML catalog from path.
func Load(path string, cacheSize int) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Parse(f, cacheSize)
}

// Parse reads a TOML catalog from r.
func Parse(r io.Reader, cacheSize int) (*Catalog, error) {
	var doc file
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	return New(doc.Sets, cacheSize)
}

// New builds a catalog from sets.
func New(sets []Set, cacheSize int) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		bySet: make(map[string][]int),
		cache: cache,
	}

	for _, s := range sets {
		if strings.TrimSpace(s.Name) == "" {
			return nil, errors.New("catalog set without a name")
		}

		for _, card := range s.Cards {
			if card.Name == "" || card.Rarity == "" {
				return nil, fmt.Errorf("catalog set %q has a card without name or rarity", s.Name)
			}

			c.bySet[s.Name] = append(c.bySet[s.Name], len(c.entries))
			c.entries = append(c.entries, entry{set: s.Name, card: card})
			c.names = append(c.names, strings.ToLower(card.Name))
		}
	}

	return c, nil
}

// Len returns the number of printings.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Resolve turns a selection value "set|||name|||code|||id" into the canonical
// printing. Missing trailing fields count as blank; a blank code or id does
// not narrow the match.
func (c *Catalog) Resolve(value string) (domain.Printing, error) {
	key := "resolve:" + value
	if cached, ok := c.cache.Get(key); ok {
		return cached.(domain.Printing), nil
	}

	parts := strings.Split(value, ValueSeparator)
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	set, name, code, id := parts[0], parts[1], parts[2], parts[3]

	idx, ok := c.bySet[set]
	if !ok {
		return domain.Printing{}, fmt.Errorf("%w: %w: %q", domain.ErrInvalidItem, ErrUnknownSet, set)
	}

	var candidates []Card
	for _, i := range idx {
		if c.entries[i].card.Name == name {
			candidates = append(candidates, c.entries[i].card)
		}
	}

	if len(candidates) == 0 {
		return domain.Printing{}, fmt.Errorf("%w: %w: %q in %q", domain.ErrInvalidItem, ErrUnknownCard, name, set)
	}

	if code != "" {
		candidates = filter(candidates, func(card Card) bool { return card.Code == code })
		if len(candidates) == 0 {
			return domain.Printing{}, fmt.Errorf("%w: %w: %q with code %q", domain.ErrInvalidItem, ErrUnknownCard, name, code)
		}
	}

	if id != "" {
		candidates = filter(candidates, func(card Card) bool { return card.ID == id })
		if len(candidates) == 0 {
			return domain.Printing{}, fmt.Errorf("%w: %w: %q with id %q", domain.ErrInvalidItem, ErrUnknownCard, name, id)
		}
	}

	first := candidates[0]
	for _, other := range candidates[1:] {
		if other.Rarity != first.Rarity || other.Code != first.Code || other.ID != first.ID {
			return domain.Printing{}, fmt.Errorf("%w: %w", domain.ErrInvalidItem, ErrAmbiguousPrinting)
		}
	}

	p := domain.NewPrinting(first.Name, first.Rarity, set, first.Code, first.ID)
	c.cache.Add(key, p)

	return p, nil
}

// Suggest returns up to limit printings whose names fuzzily match query,
// best match first. An empty query lists the catalog in file order.
func (c *Catalog) Suggest(query string, limit int) []Suggestion {
	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}

	query = strings.ToLower(strings.TrimSpace(query))

	key := fmt.Sprintf("suggest:%d:%s", limit, query)
	if cached, ok := c.cache.Get(key); ok {
		return slices.Clone(cached.([]Suggestion))
	}

	var order []int
	if query == "" {
		order = make([]int, len(c.entries))
		for i := range order {
			order[i] = i
		}
	} else {
		for _, m := range fuzzy.Find(query, c.names) {
			order = append(order, m.Index)
		}
	}

	out := make([]Suggestion, 0, limit)
	seen := make(map[string]struct{}, limit)

	for _, i := range order {
		e := c.entries[i]

		value := strings.Join([]string{e.set, e.card.Name, e.card.Code, e.card.ID}, ValueSeparator)
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}

		label := fmt.Sprintf("%s (set:%s) [%s]", e.card.Name, e.set, e.card.Rarity)
		out = append(out, Suggestion{Label: truncate(label), Value: truncate(value)})

		if len(out) == limit {
			break
		}
	}

	c.cache.Add(key, slices.Clone(out))

	return out
}

func filter(cards []Card, keep func(Card) bool) []Card {
	out := cards[:0:0]
	for _, card := range cards {
		if keep(card) {
			out = append(out, card)
		}
	}

	return out
}

func truncate(s string) string {
	if len(s) <= maxChoiceLength {
		return s
	}

	cut := maxChoiceLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
