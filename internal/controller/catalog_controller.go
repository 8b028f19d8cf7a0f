package controller

import (
	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/pkg/serverutils"
	"ai-shopping-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICatalogController interface {
	RegisterRoutes(r fiber.Router, actor fiber.Handler)
	SubmitEmbeddings(ctx *fiber.Ctx) error
}

type catalogController struct {
	service service.ICatalogEmbeddingService
}

func NewCatalogController(service service.ICatalogEmbeddingService) ICatalogController {
	return &catalogController{service: service}
}

func (c *catalogController) RegisterRoutes(r fiber.Router, actor fiber.Handler) {
	h := r.Group("/catalog/v1")
	h.Use(actor)
	h.Post("embeddings/batch", c.SubmitEmbeddings)
}

func (c *catalogController) SubmitEmbeddings(ctx *fiber.Ctx) error {
	var req dto.SubmitEmbeddingsRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitMissing(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Batch embedding submitted", res))
}
