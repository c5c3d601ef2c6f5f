package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func phoenix(qty int64) CardItem {
	return CardItem{Printing: Printing{Name: "Phoenix", Rarity: "rare", Set: "SetA"}, Qty: qty}
}

func TestPrinting_Equal(t *testing.T) {
	t.Parallel()

	base := Printing{Name: "Phoenix", Rarity: "rare", Set: "SetA"}
	withCode := base
	withCode.Code = strPtr("PHX-001")
	emptyCode := base
	emptyCode.Code = strPtr("")

	if !base.Equal(base) {
		t.Fatal("expected printing to equal itself")
	}

	if base.Equal(withCode) {
		t.Fatal("nil code must not match a set code")
	}

	if base.Equal(emptyCode) {
		t.Fatal("nil code must not match an empty code")
	}

	if base.Key() == emptyCode.Key() {
		t.Fatal("expected distinct keys for nil and empty code")
	}
}

func TestNewPrinting(t *testing.T) {
	t.Parallel()

	p := NewPrinting(" Phoenix ", "SR", "SetA", " ", "c-1")

	want := Printing{Name: "Phoenix", Rarity: "super", Set: "SetA", CardID: strPtr("c-1")}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("printing mismatch (-want +got):\n%s", diff)
	}
}

func TestItem_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{name: "card", item: phoenix(2)},
		{name: "card max quantity", item: phoenix(MaxCardQuantity)},
		{name: "card zero quantity", item: phoenix(0), wantErr: true},
		{name: "card above max", item: phoenix(MaxCardQuantity + 1), wantErr: true},
		{name: "card without set", item: CardItem{Printing: Printing{Name: "X", Rarity: "rare"}, Qty: 1}, wantErr: true},
		{name: "token", item: Tokens(10)},
		{name: "token with set", item: CurrencyItem{CurrencyKey: CurrencyKey{Currency: CurrencyToken, SetID: 1}, Amount: 1}, wantErr: true},
		{name: "shards", item: Shards(1, 50)},
		{name: "shards without set", item: Shards(0, 50), wantErr: true},
		{name: "negative amount", item: Shards(1, -5), wantErr: true},
		{name: "unknown currency", item: CurrencyItem{CurrencyKey: CurrencyKey{Currency: "gems"}, Amount: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidItem) {
				t.Fatalf("expected ErrInvalidItem, got %v", err)
			}

			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBundle_Normalize(t *testing.T) {
	t.Parallel()

	t.Run("merges duplicates in first-seen order", func(t *testing.T) {
		b := Bundle{phoenix(1), Shards(1, 20), phoenix(2), Shards(1, 30), Tokens(5)}

		got, err := b.Normalize()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := Bundle{phoenix(3), Shards(1, 50), Tokens(5)}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("bundle mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("keeps printings with different codes apart", func(t *testing.T) {
		coded := phoenix(1)
		coded.Code = strPtr("PHX-001")

		got, err := Bundle{phoenix(1), coded}.Normalize()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(got) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(got))
		}
	})

	t.Run("empty bundle", func(t *testing.T) {
		if _, err := (Bundle{}).Normalize(); !errors.Is(err, ErrInvalidBundle) {
			t.Fatalf("expected ErrInvalidBundle, got %v", err)
		}
	})

	t.Run("invalid item wraps both errors", func(t *testing.T) {
		_, err := Bundle{phoenix(0)}.Normalize()
		if !errors.Is(err, ErrInvalidBundle) || !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("expected ErrInvalidBundle and ErrInvalidItem, got %v", err)
		}
	})

	t.Run("negative line cannot be netted away", func(t *testing.T) {
		_, err := Bundle{phoenix(-3), phoenix(4)}.Normalize()
		if !errors.Is(err, ErrInvalidBundle) || !errors.Is(err, ErrInvalidItem) {
			t.Fatalf("expected ErrInvalidBundle and ErrInvalidItem, got %v", err)
		}
	})

	t.Run("merged quantity over the limit", func(t *testing.T) {
		if _, err := (Bundle{phoenix(600), phoenix(600)}).Normalize(); !errors.Is(err, ErrInvalidBundle) {
			t.Fatalf("expected ErrInvalidBundle, got %v", err)
		}
	})

	t.Run("too many card lines", func(t *testing.T) {
		var b Bundle
		for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
			b = append(b, CardItem{Printing: Printing{Name: name, Rarity: "rare", Set: "S"}, Qty: 1})
		}

		if _, err := b.Normalize(); !errors.Is(err, ErrInvalidBundle) {
			t.Fatalf("expected ErrInvalidBundle, got %v", err)
		}
	})

	t.Run("too many items", func(t *testing.T) {
		var b Bundle
		for set := int32(1); set <= MaxBundleItems+1; set++ {
			b = append(b, Shards(set, 1))
		}

		if _, err := b.Normalize(); !errors.Is(err, ErrInvalidBundle) {
			t.Fatalf("expected ErrInvalidBundle, got %v", err)
		}
	})
}

func TestBundle_HasCard(t *testing.T) {
	t.Parallel()

	if (Bundle{Tokens(1), Shards(2, 3)}).HasCard() {
		t.Fatal("currency-only bundle reported a card")
	}

	if !(Bundle{Tokens(1), phoenix(1)}).HasCard() {
		t.Fatal("expected card to be found")
	}
}

func TestBundle_JSON(t *testing.T) {
	t.Parallel()

	coded := phoenix(2)
	coded.Code = strPtr("")

	in := Bundle{coded, Shards(1, 50), Tokens(3)}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Bundle
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("bundle mismatch (-want +got):\n%s", diff)
	}

	var bad Bundle
	if err := json.Unmarshal([]byte(`[{"type":"pack"}]`), &bad); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for unknown type, got %v", err)
	}
}

func TestBundle_String(t *testing.T) {
	t.Parallel()

	got := Bundle{phoenix(2), Shards(1, 50)}.String()
	want := "x2 Phoenix (rare, set:SetA), 50 shards (set 1)"

	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
