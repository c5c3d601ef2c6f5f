package dto

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/iho/cardtrade/internal/domain"
)

type stubResolver map[string]domain.Printing

func (s stubResolver) Resolve(value string) (domain.Printing, error) {
	p, ok := s[value]
	if !ok {
		return domain.Printing{}, domain.ErrInvalidItem
	}
	return p, nil
}

func TestItemRequest_ToItem(t *testing.T) {
	code := "A-001"
	resolver := stubResolver{
		"SetA|||Phoenix|||A-001|||": {Name: "Phoenix", Rarity: "rare", Set: "SetA", Code: &code},
	}

	tests := []struct {
		name     string
		req      ItemRequest
		resolver PrintingResolver
		want     domain.Item
		wantErr  error
	}{
		{
			name: "explicit card fields",
			req:  ItemRequest{Type: "card", Name: " Phoenix ", Rarity: "R", Set: "set: SetA", Quantity: 2},
			want: domain.CardItem{Printing: domain.Printing{Name: "Phoenix", Rarity: "rare", Set: "SetA"}, Qty: 2},
		},
		{
			name:     "catalog selection",
			req:      ItemRequest{Type: "card", Selection: "SetA|||Phoenix|||A-001|||", Quantity: 1},
			resolver: resolver,
			want:     domain.CardItem{Printing: domain.Printing{Name: "Phoenix", Rarity: "rare", Set: "SetA", Code: &code}, Qty: 1},
		},
		{
			name:    "selection without catalog",
			req:     ItemRequest{Type: "card", Selection: "SetA|||Phoenix", Quantity: 1},
			wantErr: domain.ErrInvalidItem,
		},
		{
			name: "tokens",
			req:  ItemRequest{Type: "currency", Currency: "token", Amount: 50},
			want: domain.Tokens(50),
		},
		{
			name: "shards",
			req:  ItemRequest{Type: "currency", Currency: "shards", SetID: 3, Amount: 5},
			want: domain.Shards(3, 5),
		},
		{
			name:    "unknown type",
			req:     ItemRequest{Type: "pack"},
			wantErr: domain.ErrInvalidItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ToItem(tt.resolver)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ToItem() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToBundleReportsItemPosition(t *testing.T) {
	_, err := ToBundle([]ItemRequest{
		{Type: "currency", Currency: "token", Amount: 1},
		{Type: "bogus"},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "item 2") {
		t.Fatalf("expected error naming item 2, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := []ItemRequest{{Type: "currency", Currency: "token", Amount: 1}}

	tests := []struct {
		name    string
		req     any
		wantMsg string
	}{
		{
			name: "valid proposal",
			req:  &ProposeTradeRequest{ReceiverID: "175928847299117063", Give: valid},
		},
		{
			name:    "missing receiver",
			req:     &ProposeTradeRequest{Give: valid},
			wantMsg: "receiver_id is required",
		},
		{
			name:    "receiver not a snowflake",
			req:     &ProposeTradeRequest{ReceiverID: "bob", Give: valid},
			wantMsg: "receiver_id must be a snowflake id",
		},
		{
			name:    "empty give",
			req:     &ProposeTradeRequest{ReceiverID: "1", Give: []ItemRequest{}},
			wantMsg: "give must be at least 1",
		},
		{
			name:    "bad item type",
			req:     &RespondTradeRequest{Get: []ItemRequest{{Type: "pack"}}},
			wantMsg: "get[0].type must be one of [card currency]",
		},
		{
			name:    "card quantity too high",
			req:     &GrantRequest{Items: []ItemRequest{{Type: "card", Name: "X", Quantity: 1000}}},
			wantMsg: "items[0].quantity must be at most 999",
		},
		{
			name:    "note too long",
			req:     &ProposeTradeRequest{ReceiverID: "1", Give: valid, Note: strings.Repeat("x", 201)},
			wantMsg: "note must be at most 200",
		},
		{
			name:    "attach message needs both ids",
			req:     &AttachMessageRequest{ChannelID: "1"},
			wantMsg: "message_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}
