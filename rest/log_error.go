package rest

import (
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// logReadError logs a failed read with the status it will be reported as.
// Client errors, such as a suite or measurement that does not exist, log at
// info; storage and detector failures log as errors.
func logReadError(err error, fields message.Fields) {
	status := http.StatusInternalServerError
	var errResp gimlet.ErrorResponse
	if errors.As(err, &errResp) {
		status = errResp.StatusCode
	}
	fields["status"] = status

	priority := level.Error
	if status < http.StatusInternalServerError {
		priority = level.Info
	}
	grip.Log(priority, message.WrapError(err, fields))
}
