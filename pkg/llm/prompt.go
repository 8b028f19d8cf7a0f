package llm

import (
	"encoding/json"
	"fmt"

	"ai-shopping-assistant-be/internal/constant"
	"ai-shopping-assistant-be/pkg/shopping"
)

type promptStore struct {
	StoreId  int64                `json:"store_id"`
	Products []shopping.Candidate `json:"products"`
}

// CartAssemblyPrompt renders the user half of the cart assembly request.
// Stores are listed in ascending id order so the prompt is stable.
func CartAssemblyPrompt(candidates shopping.CandidatesByStore, input string) (string, error) {
	stores := make([]promptStore, 0, len(candidates))
	for _, storeId := range candidates.StoreIds() {
		stores = append(stores, promptStore{StoreId: storeId, Products: candidates[storeId]})
	}
	encoded, err := json.Marshal(stores)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(constant.CartAssemblyUserPromptTemplateV1, input, string(encoded)), nil
}
