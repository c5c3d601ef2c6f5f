package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ItemKind discriminates the two item variants.
type ItemKind string

const (
	ItemKindCard     ItemKind = "card"
	ItemKindCurrency ItemKind = "currency"
)

// CurrencyKind is either the universal token or per-set shards.
type CurrencyKind string

const (
	CurrencyToken  CurrencyKind = "token"
	CurrencyShards CurrencyKind = "shards"
)

// Item is one line of a trade offer: a CardItem or a CurrencyItem.
// The interface is sealed; code that consumes items switches on the
// concrete type and treats anything else as ErrInvalidItem.
type Item interface {
	Kind() ItemKind
	Quantity() int64
	Validate() error
	String() string

	withQuantity(q int64) Item
	mergeKey() string
}

// Printing is the exact identity of a card variant. A nil Code or CardID
// matches only a nil stored field.
type Printing struct {
	Name   string  `json:"name"`
	Rarity string  `json:"rarity"`
	Set    string  `json:"set"`
	Code   *string `json:"code,omitempty"`
	CardID *string `json:"card_id,omitempty"`
}

// NewPrinting builds a printing from resolver output. Blank code and id
// become nil and rarity is normalized.
func NewPrinting(name, rarity, set, code, cardID string) Printing {
	return Printing{
		Name:   strings.TrimSpace(name),
		Rarity: NormalizeRarity(rarity),
		Set:    strings.TrimSpace(set),
		Code:   blankToNil(code),
		CardID: blankToNil(cardID),
	}
}

// Equal reports exact identity equality.
func (p Printing) Equal(o Printing) bool {
	return p.Name == o.Name &&
		p.Rarity == o.Rarity &&
		p.Set == o.Set &&
		nullableEqual(p.Code, o.Code) &&
		nullableEqual(p.CardID, o.CardID)
}

// Key encodes the identity so that a nil field and an empty string differ.
func (p Printing) Key() string {
	return strings.Join([]string{p.Name, p.Rarity, p.Set, nullableKey(p.Code), nullableKey(p.CardID)}, "\x1f")
}

// Validate checks that the mandatory identity fields are present.
func (p Printing) Validate() error {
	if p.Name == "" || p.Rarity == "" || p.Set == "" {
		return fmt.Errorf("%w: printing needs name, rarity and set", ErrInvalidItem)
	}

	return nil
}

func (p Printing) String() string {
	return fmt.Sprintf("%s (%s, set:%s)", p.Name, p.Rarity, p.Set)
}

// CardItem offers Qty copies of one printing.
type CardItem struct {
	Printing
	Qty int64
}

func (c CardItem) Kind() ItemKind  { return ItemKindCard }
func (c CardItem) Quantity() int64 { return c.Qty }

func (c CardItem) Validate() error {
	if err := c.Printing.Validate(); err != nil {
		return err
	}

	if c.Qty < MinItemQuantity || c.Qty > MaxCardQuantity {
		return fmt.Errorf("%w: card quantity must be between %d and %d", ErrInvalidItem, MinItemQuantity, MaxCardQuantity)
	}

	return nil
}

func (c CardItem) String() string {
	return fmt.Sprintf("x%d %s", c.Qty, c.Printing)
}

func (c CardItem) withQuantity(q int64) Item {
	c.Qty = q
	return c
}

func (c CardItem) mergeKey() string {
	return "card\x1e" + c.Printing.Key()
}

// CurrencyKey identifies one balance row of an account.
// SetID is zero for the token.
type CurrencyKey struct {
	Currency CurrencyKind
	SetID    int32
}

func (k CurrencyKey) String() string {
	if k.Currency == CurrencyShards {
		return fmt.Sprintf("shards (set %d)", k.SetID)
	}

	return string(k.Currency)
}

// Validate checks that the key names a real balance.
func (k CurrencyKey) Validate() error {
	switch k.Currency {
	case CurrencyToken:
		if k.SetID != 0 {
			return fmt.Errorf("%w: token takes no set id", ErrInvalidItem)
		}
	case CurrencyShards:
		if k.SetID <= 0 {
			return fmt.Errorf("%w: shards need a positive set id", ErrInvalidItem)
		}
	default:
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidItem, k.Currency)
	}

	return nil
}

// CurrencyItem offers Amount units of one currency balance.
type CurrencyItem struct {
	CurrencyKey
	Amount int64
}

// Tokens is shorthand for a token item.
func Tokens(amount int64) CurrencyItem {
	return CurrencyItem{CurrencyKey: CurrencyKey{Currency: CurrencyToken}, Amount: amount}
}

// Shards is shorthand for a shard item of one set.
func Shards(setID int32, amount int64) CurrencyItem {
	return CurrencyItem{CurrencyKey: CurrencyKey{Currency: CurrencyShards, SetID: setID}, Amount: amount}
}

func (c CurrencyItem) Kind() ItemKind  { return ItemKindCurrency }
func (c CurrencyItem) Quantity() int64 { return c.Amount }

func (c CurrencyItem) Validate() error {
	if err := c.CurrencyKey.Validate(); err != nil {
		return err
	}

	if c.Amount < MinItemQuantity || c.Amount > MaxCurrencyAmount {
		return fmt.Errorf("%w: amount must be between %d and %d", ErrInvalidItem, MinItemQuantity, MaxCurrencyAmount)
	}

	return nil
}

func (c CurrencyItem) String() string {
	return fmt.Sprintf("%d %s", c.Amount, c.CurrencyKey)
}

func (c CurrencyItem) withQuantity(q int64) Item {
	c.Amount = q
	return c
}

func (c CurrencyItem) mergeKey() string {
	return fmt.Sprintf("currency\x1e%s\x1f%d", c.Currency, c.SetID)
}

// Bundle is the list of items one participant offers.
type Bundle []Item

// HasCard reports whether the bundle contains at least one card line.
func (b Bundle) HasCard() bool {
	for _, it := range b {
		if _, ok := it.(CardItem); ok {
			return true
		}
	}

	return false
}

// Validate checks size limits and every item.
func (b Bundle) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: bundle is empty", ErrInvalidBundle)
	}

	if len(b) > MaxBundleItems {
		return fmt.Errorf("%w: at most %d items per bundle", ErrInvalidBundle, MaxBundleItems)
	}

	cards := 0
	for i, it := range b {
		if it == nil {
			return fmt.Errorf("%w: item %d is empty", ErrInvalidBundle, i+1)
		}

		if err := it.Validate(); err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrInvalidBundle, i+1, err)
		}

		if it.Kind() == ItemKindCard {
			cards++
		}
	}

	if cards > MaxCardLines {
		return fmt.Errorf("%w: at most %d card lines per bundle", ErrInvalidBundle, MaxCardLines)
	}

	return nil
}

// Normalize validates each line, merges lines with the same identity keeping
// first-seen order, and validates the result.
func (b Bundle) Normalize() (Bundle, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: bundle is empty", ErrInvalidBundle)
	}

	index := make(map[string]int, len(b))
	out := make(Bundle, 0, len(b))

	for i, it := range b {
		if it == nil {
			return nil, fmt.Errorf("%w: item %d is empty", ErrInvalidBundle, i+1)
		}

		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidBundle, i+1, err)
		}

		key := it.mergeKey()
		if pos, ok := index[key]; ok {
			out[pos] = out[pos].withQuantity(out[pos].Quantity() + it.Quantity())
			continue
		}

		index[key] = len(out)
		out = append(out, it)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}

	return out, nil
}

func (b Bundle) String() string {
	if len(b) == 0 {
		return "(nothing)"
	}

	parts := make([]string, len(b))
	for i, it := range b {
		parts[i] = it.String()
	}

	return strings.Join(parts, ", ")
}

type itemJSON struct {
	Type     ItemKind     `json:"type"`
	Name     string       `json:"name,omitempty"`
	Rarity   string       `json:"rarity,omitempty"`
	Set      string       `json:"set,omitempty"`
	Code     *string      `json:"code,omitempty"`
	CardID   *string      `json:"card_id,omitempty"`
	Quantity int64        `json:"quantity,omitempty"`
	Currency CurrencyKind `json:"currency,omitempty"`
	SetID    int32        `json:"set_id,omitempty"`
	Amount   int64        `json:"amount,omitempty"`
}

// MarshalJSON writes the bundle as a list of tagged items.
func (b Bundle) MarshalJSON() ([]byte, error) {
	out := make([]itemJSON, 0, len(b))

	for _, it := range b {
		switch v := it.(type) {
		case CardItem:
			out = append(out, itemJSON{
				Type:     ItemKindCard,
				Name:     v.Name,
				Rarity:   v.Rarity,
				Set:      v.Set,
				Code:     v.Code,
				CardID:   v.CardID,
				Quantity: v.Qty,
			})
		case CurrencyItem:
			out = append(out, itemJSON{
				Type:     ItemKindCurrency,
				Currency: v.Currency,
				SetID:    v.SetID,
				Amount:   v.Amount,
			})
		default:
			return nil, fmt.Errorf("%w: unsupported item %T", ErrInvalidItem, it)
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON reads a list of tagged items.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw []itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw) == 0 {
		*b = nil
		return nil
	}

	out := make(Bundle, 0, len(raw))

	for _, r := range raw {
		switch r.Type {
		case ItemKindCard:
			out = append(out, CardItem{
				Printing: Printing{Name: r.Name, Rarity: r.Rarity, Set: r.Set, Code: r.Code, CardID: r.CardID},
				Qty:      r.Quantity,
			})
		case ItemKindCurrency:
			out = append(out, CurrencyItem{
				CurrencyKey: CurrencyKey{Currency: r.Currency, SetID: r.SetID},
				Amount:      r.Amount,
			})
		default:
			return fmt.Errorf("%w: unknown item type %q", ErrInvalidItem, r.Type)
		}
	}

	*b = out

	return nil
}

func blankToNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	return &s
}

func nullableEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func nullableKey(s *string) string {
	if s == nil {
		return "\x00"
	}

	return "=" + *s
}
