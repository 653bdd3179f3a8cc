package observability

import "go.uber.org/zap"

// NewLogger builds the process-wide structured logger. Components receive
// it by injection; there is no package-level logger.
func NewLogger(environment string) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if environment == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return l
}
