package model

import (
	"context"

	"github.com/wingmanhq/wingman/internal/model/contract"
)

type Provider interface {
	Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	Name() string
}
