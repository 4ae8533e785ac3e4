package interfaces

import (
	"context"

	"github.com/customeros/mailresponder/dto"
)

type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, msg *dto.RawMessage) (string, error)
}
