package interfaces

import (
	"context"

	"github.com/customeros/mailresponder/dto"
	"github.com/customeros/mailresponder/internal/enum"
)

type EmailFilterService interface {
	ScanEmail(ctx context.Context, msg *dto.RawMessage) (enum.EmailClassification, string)
}
