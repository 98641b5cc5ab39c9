package routes

import (
	"context"

	"galaxy/lib/authentication"
	"galaxy/lib/server/middleware"

	"github.com/gofiber/fiber/v2"
)

type TokenIssuer interface {
	IssueEmpireTokens(ctx context.Context, empire_id string) (*authentication.TokenPair, error)
	RefreshEmpireTokens(ctx context.Context, refresh_token string) (*authentication.TokenPair, error)
	RevokeEmpireTokens(ctx context.Context, empire_id string) error
}

type IssueTokenData struct {
	EmpireID string `json:"empire_id"`
}

// IssueTokenHandler is called by game servers on behalf of an empire.
func IssueTokenHandler(data IssueTokenData, ctx *fiber.Ctx, auth TokenIssuer) error {
	pair, err := auth.IssueEmpireTokens(ctx.Context(), data.EmpireID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(pair)
}

type RefreshTokenData struct {
	RefreshToken string `json:"refresh_token"`
}

func RefreshTokenHandler(data RefreshTokenData, ctx *fiber.Ctx, auth TokenIssuer) error {
	if data.RefreshToken == "" {
		return badRequest(ctx, "refresh token is required")
	}
	pair, err := auth.RefreshEmpireTokens(ctx.Context(), data.RefreshToken)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(pair)
}

func RevokeTokenHandler(ctx *fiber.Ctx, auth TokenIssuer) error {
	empire_id, err := middleware.GetEmpireID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}
	if err := auth.RevokeEmpireTokens(ctx.Context(), empire_id); err != nil {
		return respondError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
