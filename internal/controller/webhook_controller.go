package controller

import (
	"net/http"
	"strings"

	"ai-shopping-assistant-be/internal/pkg/serverutils"
	"ai-shopping-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Receive(ctx *fiber.Ctx) error
}

type webhookController struct {
	service service.IWebhookService
}

func NewWebhookController(service service.IWebhookService) IWebhookController {
	return &webhookController{service: service}
}

// RegisterRoutes mounts the provider callback. It is authenticated by the
// provider's signature during ingestion, not by a bearer token.
func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhooks/v1")
	h.Post("llm", c.Receive)
}

func (c *webhookController) Receive(ctx *fiber.Ctx) error {
	// fasthttp reuses request buffers once the handler returns, and the
	// notification is consumed later.
	headers := http.Header{}
	for key, values := range ctx.GetReqHeaders() {
		for _, v := range values {
			headers.Add(strings.Clone(key), strings.Clone(v))
		}
	}
	body := append([]byte(nil), ctx.Body()...)

	res, err := c.service.Receive(ctx.Context(), body, headers)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Notification accepted", res))
}
