package middleware

import "github.com/MonkyMars/gecho"

type Middleware struct {
	logger *gecho.Logger
}

func NewMiddleware(logger *gecho.Logger) *Middleware {
	if logger == nil {
		logger = gecho.NewDefaultLogger()
	}
	return &Middleware{
		logger: logger,
	}
}
