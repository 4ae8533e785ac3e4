package interfaces

import (
	"context"

	"github.com/customeros/mailresponder/dto"
)

type ReplySender interface {
	Send(ctx context.Context, original *dto.RawMessage, responseText string) error
}
