package controller

import (
	"ai-shopping-assistant-be/internal/dto"
	"ai-shopping-assistant-be/internal/pkg/serverutils"
	"ai-shopping-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, actor fiber.Handler)
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	ConfirmAction(ctx *fiber.Ctx) error
	RetryAction(ctx *fiber.Ctx) error
}

type chatController struct {
	conversation service.IConversationService
	actions      service.IActionService
}

func NewChatController(conversation service.IConversationService, actions service.IActionService) IChatController {
	return &chatController{
		conversation: conversation,
		actions:      actions,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router, actor fiber.Handler) {
	h := r.Group("/chat/v1")
	h.Use(actor)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions", c.ListSessions)
	h.Get("sessions/:sessionId", c.GetSession)
	h.Post("sessions/:sessionId/messages", c.SendMessage)
	h.Post("sessions/:sessionId/actions/:actionId/confirm", c.ConfirmAction)
	h.Post("sessions/:sessionId/actions/:actionId/retry", c.RetryAction)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId, _ := serverutils.Actor(ctx)

	res, err := c.conversation.CreateSession(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	userId, _ := serverutils.Actor(ctx)

	res, err := c.conversation.ListSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	userId, _ := serverutils.Actor(ctx)
	sessionId, err := serverutils.ParamUUID(ctx, "sessionId")
	if err != nil {
		return err
	}

	res, err := c.conversation.GetSession(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userId, _ := serverutils.Actor(ctx)
	sessionId, err := serverutils.ParamUUID(ctx, "sessionId")
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversation.SendMessage(ctx.Context(), userId, sessionId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) ConfirmAction(ctx *fiber.Ctx) error {
	userId, _ := serverutils.Actor(ctx)
	sessionId, err := serverutils.ParamUUID(ctx, "sessionId")
	if err != nil {
		return err
	}
	actionId, err := serverutils.ParamUUID(ctx, "actionId")
	if err != nil {
		return err
	}

	res, err := c.actions.Confirm(ctx.Context(), userId, sessionId, actionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success confirm action", res))
}

func (c *chatController) RetryAction(ctx *fiber.Ctx) error {
	userId, _ := serverutils.Actor(ctx)
	sessionId, err := serverutils.ParamUUID(ctx, "sessionId")
	if err != nil {
		return err
	}
	actionId, err := serverutils.ParamUUID(ctx, "actionId")
	if err != nil {
		return err
	}

	res, err := c.actions.Retry(ctx.Context(), userId, sessionId, actionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retry action", res))
}
