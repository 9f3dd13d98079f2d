package infra

import (
	"context"
	"io"
)

type PaymentGatewayInterface interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

type ImageStoreInterface interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var _ PaymentGatewayInterface = (*PaymentGateway)(nil)
var _ ImageStoreInterface = (*S3ImageStore)(nil)
