package dto

type SubmitEmbeddingsRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=50000"`
}

type SubmitEmbeddingsResponse struct {
	Submitted int `json:"submitted"`
}

type WebhookAcceptedResponse struct {
	Duplicate bool `json:"duplicate"`
}
