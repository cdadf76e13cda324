package usecase

import (
	"context"
	"fmt"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
	"ContractsOrchestrator/internal/repair"
)

// generator adapts a gateway to the repair loop: one plain-text round per call
// with a fixed system instruction and no tools.
func generator(model ports.ModelGateway, system string) (repair.GenerateFunc, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model gateway", domain.ErrNotConfigured)
	}
	return func(ctx context.Context, turns []domain.Turn) (string, error) {
		out, err := model.Generate(ctx, turns, domain.GenerateOptions{SystemInstruction: system})
		if err != nil {
			return "", err
		}
		return out.Text, nil
	}, nil
}
