package web

// errors.go turns load engine errors into JSON responses.
//
// Every error response carries a short code support can search logs for:
//
//	RUN001  another run holds the run slot               409
//	RUN002  the run exceeded RUN_TIMEOUT                 504
//	RUN003  the run was cancelled                        503
//	LED001  the metadata ledger could not be read/written 503
//	SNP001  the bronze store could not be read/written    500
//	SCH001  a silver table could not be created           500
//	LOD001  rows could not be inserted                    500
//	CON001  no contract exists for the table              422
//	FIL001  the workbook does not exist                   404
//	REQ001  the request is malformed                      400
//	DB001   the database is unreachable                   503
//	GEN001  anything else                                 500
//
// The technical error is logged with the request id; clients see the message.

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/JonMunkholm/silverload/internal/core"
	"github.com/JonMunkholm/silverload/internal/logging"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Run     any    `json:"run,omitempty"`
}

// UserMessage is a client-safe description of an error.
type UserMessage struct {
	Code    string
	Message string
	Action  string
	Status  int
}

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Is(target error) bool {
	return target == errBadRequest
}

func badRequest(msg string) error { return &requestError{msg: msg} }

// connectionPatterns match driver errors that mean the database is unreachable.
var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"failed to connect",
}

// MapError converts err into a client-safe message.
func MapError(err error) UserMessage {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return UserMessage{"REQ001", reqErr.msg, "Check the request body", http.StatusBadRequest}
	case errors.Is(err, core.ErrRunInProgress):
		return UserMessage{"RUN001", "A load run is already in progress", "Try again when the current run finishes", http.StatusConflict}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{"RUN002", "The run took too long and was stopped", "Files loaded before the timeout are recorded; run again to continue", http.StatusGatewayTimeout}
	case errors.Is(err, context.Canceled):
		return UserMessage{"RUN003", "The run was cancelled", "Run again to continue", http.StatusServiceUnavailable}
	case errors.Is(err, fs.ErrNotExist):
		return UserMessage{"FIL001", "Workbook not found", "Check the path is inside the raw directory", http.StatusNotFound}
	case errors.Is(err, core.ErrLedgerAccess):
		return UserMessage{"LED001", "The load ledger is unavailable", "Check the database and run again", http.StatusServiceUnavailable}
	case errors.Is(err, core.ErrSnapshot):
		return UserMessage{"SNP001", "The bronze store could not be read", "Check the snapshot directory", http.StatusInternalServerError}
	case errors.Is(err, core.ErrSchemaCreation):
		return UserMessage{"SCH001", "A silver table could not be created", "", http.StatusInternalServerError}
	case errors.Is(err, core.ErrLoad):
		return UserMessage{"LOD001", "Rows could not be loaded", "", http.StatusInternalServerError}
	case errors.Is(err, core.ErrContractNotFound):
		return UserMessage{"CON001", "No contract is defined for this table", "Rename the sheet to a known table", http.StatusUnprocessableEntity}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range connectionPatterns {
		if strings.Contains(lower, p) {
			return UserMessage{"DB001", "Unable to connect to the database", "Please try again in a few moments", http.StatusServiceUnavailable}
		}
	}
	return UserMessage{"GEN001", "An unexpected error occurred", "", http.StatusInternalServerError}
}

// respondError logs err and writes its mapped message. run, when non-nil, is
// the partial report of an aborted run.
func respondError(w http.ResponseWriter, r *http.Request, err error, run any) {
	msg := MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"code", msg.Code,
		"error", err.Error(),
	)

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if run != nil {
		resp.Run = run
	}
	if msg.Status == http.StatusConflict {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, msg.Status, resp)
}
