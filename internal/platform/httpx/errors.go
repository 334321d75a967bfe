package httpx

import (
	"net/http"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// statusByKind maps the workflow error taxonomy onto HTTP statuses.
var statusByKind = map[shared.Kind]int{
	shared.KindInvalidArgument:    http.StatusBadRequest,
	shared.KindPermissionDenied:   http.StatusForbidden,
	shared.KindFailedPrecondition: http.StatusPreconditionFailed,
	shared.KindAlreadyExists:      http.StatusConflict,
	shared.KindNotFound:           http.StatusNotFound,
	shared.KindInternal:           http.StatusInternalServerError,
}

// titleByKind supplies the RFC7807 title per taxonomy kind.
var titleByKind = map[shared.Kind]string{
	shared.KindInvalidArgument:    "Invalid Argument",
	shared.KindPermissionDenied:   "Permission Denied",
	shared.KindFailedPrecondition: "Failed Precondition",
	shared.KindAlreadyExists:      "Already Exists",
	shared.KindNotFound:           "Not Found",
	shared.KindInternal:           "Internal Error",
}

// RespondError maps a workflow error to an HTTP problem response. The detail
// carries the specific business-rule message because it is contract surface
// for calling UIs.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	Problem(w, status, titleByKind[kind], shared.UserSafeMessage(err))
}
