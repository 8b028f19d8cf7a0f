// Package schema validates the structured output of language models. Output
// that does not validate is rejected whole and reported as llm.ErrSchemaInvalid.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"ai-shopping-assistant-be/pkg/llm"
	"ai-shopping-assistant-be/pkg/shopping"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type TurnReply struct {
	Reply  string       `json:"reply" validate:"required"`
	Action *ActionReply `json:"action"`
}

type ActionReply struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type SuggestCartsPayload struct {
	Input string `json:"input" validate:"required"`
}

type CartsReply struct {
	Carts []CartEntry `json:"carts" validate:"required,dive"`
}

type CartEntry struct {
	StoreId  int64          `json:"store_id" validate:"gt=0"`
	Products []ProductEntry `json:"products" validate:"min=1,dive"`
	Score    float64        `json:"score" validate:"gte=0,lte=1"`
}

type ProductEntry struct {
	ProductId int64  `json:"product_id" validate:"gt=0"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", llm.ErrSchemaInvalid, fmt.Sprintf(format, args...))
}

// decodeStrict rejects unknown fields and trailing data.
func decodeStrict(raw []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalid("%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return invalid("trailing data after JSON object")
	}
	if err := validate.Struct(out); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// ParseTurnReply decodes a turn reply and converts it to a llm.TurnResult
// without a turn ref. Action payloads of known types are validated too.
func ParseTurnReply(raw []byte) (*llm.TurnResult, error) {
	var reply TurnReply
	if err := decodeStrict(raw, &reply); err != nil {
		return nil, err
	}

	result := &llm.TurnResult{Reply: reply.Reply}
	if reply.Action == nil {
		return result, nil
	}
	if !isJSONObject(reply.Action.Payload) {
		return nil, invalid("action payload must be an object")
	}
	if reply.Action.Type == llm.ActionSuggestCarts {
		if _, err := ParseSuggestCartsPayload(reply.Action.Payload); err != nil {
			return nil, err
		}
	}

	result.Action = &llm.ProposedAction{
		Type:    reply.Action.Type,
		Payload: reply.Action.Payload,
	}
	return result, nil
}

func ParseSuggestCartsPayload(raw []byte) (*SuggestCartsPayload, error) {
	var payload SuggestCartsPayload
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.Input) == "" {
		return nil, invalid("suggest_carts input is blank")
	}
	return &payload, nil
}

// ParseCarts decodes a cart assembly reply. Every store and product must come
// from candidates.
func ParseCarts(raw []byte, candidates shopping.CandidatesByStore) ([]shopping.CartProposal, error) {
	var reply CartsReply
	if err := decodeStrict(raw, &reply); err != nil {
		return nil, err
	}

	proposals := make([]shopping.CartProposal, 0, len(reply.Carts))
	for _, cart := range reply.Carts {
		if !candidates.HasStore(cart.StoreId) {
			return nil, invalid("store %d was not among the candidates", cart.StoreId)
		}
		products := make([]shopping.CartProduct, 0, len(cart.Products))
		for _, p := range cart.Products {
			if !candidates.HasProduct(cart.StoreId, p.ProductId) {
				return nil, invalid("product %d is not a candidate of store %d", p.ProductId, cart.StoreId)
			}
			products = append(products, shopping.CartProduct{
				ProductId: p.ProductId,
				Name:      p.Name,
				Quantity:  p.Quantity,
			})
		}
		proposals = append(proposals, shopping.CartProposal{
			StoreId:  cart.StoreId,
			Products: products,
			Score:    cart.Score,
		})
	}
	return proposals, nil
}
