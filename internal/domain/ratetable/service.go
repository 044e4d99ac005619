package ratetable

import "context"

type RateTableService interface {
	Current() TableResponse
	Reload(ctx context.Context) error
	AppendRate(ctx context.Context, req AppendRateRequest) error
}
