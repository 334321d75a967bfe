// Package workflow holds the submission state machine shared by timesheets,
// expenses and purchase order requests. Guards take the current state plus
// the document kind name and return taxonomy errors; capability and ownership
// checks stay with the owning services.
package workflow

import (
	"strings"

	"github.com/crewdesk/crewdesk/internal/shared"
)

// State is the submission triad plus the two terminal flags. Committed is
// only meaningful for expenses and Locked for timesheets; the zero value is a
// draft document.
type State struct {
	Submitted bool
	Approved  bool
	Rejected  bool
	Locked    bool
	Committed bool
}

// Draft reports whether the document has never left the owner's hands.
func (s State) Draft() bool {
	return !s.Submitted && !s.Approved && !s.Locked && !s.Committed
}

// terminal reports whether the document can no longer change approval state.
func (s State) terminal() bool {
	return s.Locked || s.Committed
}

// CanSubmit guards the submit transition. Submitting a rejected document is
// the resubmission path: ApplySubmit clears the rejection in the same write.
func CanSubmit(kind string, s State) error {
	if s.terminal() {
		return shared.FailedPreconditionf("%s is %s", kind, terminalWord(s))
	}
	if s.Approved {
		return shared.FailedPreconditionf("%s is already approved", kind)
	}
	if s.Submitted && !s.Rejected {
		return shared.AlreadyExistsf("%s has already been submitted", kind)
	}
	return nil
}

// ApplySubmit flips to submitted, clearing any rejection so approved and
// rejected are never simultaneously true after a legal transition.
func ApplySubmit(s State) State {
	s.Submitted = true
	s.Rejected = false
	return s
}

// CanRecall guards the owner's recall transition.
func CanRecall(kind string, s State) error {
	if s.terminal() {
		return shared.FailedPreconditionf("%s is %s", kind, terminalWord(s))
	}
	if s.Approved {
		return shared.FailedPreconditionf("%s is already approved", kind)
	}
	if !s.Submitted {
		return shared.FailedPreconditionf("%s has not been submitted", kind)
	}
	return nil
}

// ApplyRecall returns the document to draft. Rejection state survives so the
// owner still sees why it came back.
func ApplyRecall(s State) State {
	s.Submitted = false
	return s
}

// CanApprove guards the approve transition.
func CanApprove(kind string, s State) error {
	if s.terminal() {
		return shared.FailedPreconditionf("%s is %s", kind, terminalWord(s))
	}
	if s.Approved {
		return shared.AlreadyExistsf("%s is already approved", kind)
	}
	if s.Rejected {
		return shared.FailedPreconditionf("%s has been rejected", kind)
	}
	if !s.Submitted {
		return shared.FailedPreconditionf("%s is not submitted", kind)
	}
	return nil
}

// ApplyApprove marks the document approved.
func ApplyApprove(s State) State {
	s.Approved = true
	return s
}

// CanReject guards rejection. Submitted or approved documents can be
// rejected until they reach a terminal state.
func CanReject(kind string, s State, reason string) error {
	if len(strings.TrimSpace(reason)) <= 5 {
		return shared.InvalidArgumentf("rejection reason must be longer than 5 characters")
	}
	if s.terminal() {
		return shared.FailedPreconditionf("%s is %s", kind, terminalWord(s))
	}
	if !s.Submitted && !s.Approved {
		return shared.FailedPreconditionf("only submitted or approved %s documents can be rejected", strings.ToLower(kind))
	}
	return nil
}

// ApplyReject marks the document rejected, revoking any earlier approval in
// the same write.
func ApplyReject(s State) State {
	s.Approved = false
	s.Rejected = true
	return s
}

// CanCommit guards the expense second tier. Commit requires a prior approval
// and is itself terminal.
func CanCommit(kind string, s State) error {
	if s.Committed {
		return shared.AlreadyExistsf("%s is already committed", kind)
	}
	if s.Locked {
		return shared.FailedPreconditionf("%s is locked", kind)
	}
	if s.Rejected {
		return shared.FailedPreconditionf("%s has been rejected", kind)
	}
	if !s.Approved {
		return shared.FailedPreconditionf("%s has not been approved", kind)
	}
	return nil
}

// ApplyCommit marks the document committed.
func ApplyCommit(s State) State {
	s.Committed = true
	return s
}

// CanLock guards the lock transition on approved documents.
func CanLock(kind string, s State) error {
	if s.Locked {
		return shared.AlreadyExistsf("%s is already locked", kind)
	}
	if !s.Approved {
		return shared.FailedPreconditionf("%s has not been approved", kind)
	}
	return nil
}

// ApplyLock marks the document locked.
func ApplyLock(s State) State {
	s.Locked = true
	return s
}

// CanDelete guards owner deletion: only drafts may be deleted.
func CanDelete(kind string, s State) error {
	if !s.Draft() {
		return shared.FailedPreconditionf("%s has been submitted; recall it before deleting", kind)
	}
	return nil
}

func terminalWord(s State) string {
	if s.Committed {
		return "already committed"
	}
	return "locked"
}
