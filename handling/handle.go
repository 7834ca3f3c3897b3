package handling

import (
	"net/http"

	"github.com/MonkyMars/gecho"
)

// HandleError logs err with msg and answers 500 with msg as the message.
func HandleError(err error, msg string, logger *gecho.Logger, w http.ResponseWriter) error {
	logger.Error("An error occurred", gecho.Field("error", err), gecho.Field("msg", msg), gecho.WithCallerSkip(3))

	return gecho.InternalServerError(w, gecho.WithMessage(msg)).Send()
}
