package dedupe

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockOracle is a testify mock for Oracle.
type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Analyze(ctx context.Context, a, b PropertySummary) (Verdict, error) {
	args := m.Called(ctx, a, b)
	return args.Get(0).(Verdict), args.Error(1)
}

// oracleFunc adapts a function to Oracle.
type oracleFunc func(ctx context.Context, a, b PropertySummary) (Verdict, error)

func (f oracleFunc) Analyze(ctx context.Context, a, b PropertySummary) (Verdict, error) {
	return f(ctx, a, b)
}
