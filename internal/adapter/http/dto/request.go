package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iho/cardtrade/internal/domain"
)

// ErrInvalidRequest marks a request body that failed validation.
var ErrInvalidRequest = errors.New("invalid request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("snowflake", validSnowflake)

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// validSnowflake accepts a decimal snowflake string.
var validSnowflake validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	_, err := domain.ParseAccountID(s)
	return err == nil
}

// PrintingResolver turns a catalog selection value into a printing.
type PrintingResolver interface {
	Resolve(value string) (domain.Printing, error)
}

// ItemRequest is one line of an offer. Cards are given either as a catalog
// selection value or as explicit identity fields.
type ItemRequest struct {
	Type      string `json:"type"                validate:"required,oneof=card currency"`
	Selection string `json:"selection,omitempty" validate:"omitempty,max=300"`
	Name      string `json:"name,omitempty"      validate:"omitempty,max=200"`
	Rarity    string `json:"rarity,omitempty"    validate:"omitempty,max=50"`
	Set       string `json:"set,omitempty"       validate:"omitempty,max=100"`
	Code      string `json:"code,omitempty"      validate:"omitempty,max=100"`
	CardID    string `json:"card_id,omitempty"   validate:"omitempty,max=100"`
	Quantity  int64  `json:"quantity,omitempty"  validate:"omitempty,min=1,max=999"`
	Currency  string `json:"currency,omitempty"  validate:"omitempty,oneof=token shards"`
	SetID     int32  `json:"set_id,omitempty"    validate:"omitempty,min=1"`
	Amount    int64  `json:"amount,omitempty"    validate:"omitempty,min=1,max=1000000000"`
}

// ToItem converts the request into a domain item. resolver may be nil when
// no catalog is configured, in which case selections are rejected.
func (r ItemRequest) ToItem(resolver PrintingResolver) (domain.Item, error) {
	switch domain.ItemKind(r.Type) {
	case domain.ItemKindCard:
		var p domain.Printing

		switch {
		case r.Selection != "":
			if resolver == nil {
				return nil, fmt.Errorf("%w: card selections need a catalog", domain.ErrInvalidItem)
			}

			resolved, err := resolver.Resolve(r.Selection)
			if err != nil {
				return nil, err
			}
			p = resolved
		default:
			p = domain.NewPrinting(r.Name, r.Rarity, domain.NormalizeSetName(r.Set), r.Code, r.CardID)
		}

		return domain.CardItem{Printing: p, Qty: r.Quantity}, nil
	case domain.ItemKindCurrency:
		return domain.CurrencyItem{
			CurrencyKey: domain.CurrencyKey{Currency: domain.CurrencyKind(r.Currency), SetID: r.SetID},
			Amount:      r.Amount,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown item type %q", domain.ErrInvalidItem, r.Type)
	}
}

// ToBundle converts a list of item requests.
func ToBundle(items []ItemRequest, resolver PrintingResolver) (domain.Bundle, error) {
	bundle := make(domain.Bundle, 0, len(items))

	for i, it := range items {
		item, err := it.ToItem(resolver)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		bundle = append(bundle, item)
	}

	return bundle, nil
}

// ProposeTradeRequest opens a trade.
type ProposeTradeRequest struct {
	ReceiverID string        `json:"receiver_id" validate:"required,snowflake"`
	Give       []ItemRequest `json:"give"        validate:"required,min=1,max=8,dive"`
	Note       string        `json:"note"        validate:"max=200"`
}

// RespondTradeRequest records the receiver's side.
type RespondTradeRequest struct {
	Get []ItemRequest `json:"get" validate:"required,min=1,max=8,dive"`
}

// AttachMessageRequest points a trade at its public message.
type AttachMessageRequest struct {
	ChannelID string `json:"channel_id" validate:"required,snowflake"`
	MessageID string `json:"message_id" validate:"required,snowflake"`
}

// GrantRequest credits items to an account.
type GrantRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1,max=8,dive"`
}

// Validate runs the struct tags of any request type.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, fieldMessage(ve[0]))
	}

	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "snowflake":
		return field + " must be a snowflake id"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
