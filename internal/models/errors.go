package models

import "errors"

// ErrInvalidInvitation is returned when an invitation token is unknown,
// already used, or expired. Concurrent redemptions of the same token resolve
// so that exactly one caller succeeds and all others observe this error.
var ErrInvalidInvitation = errors.New("invitation is invalid, used, or expired")

// ErrAlreadyMember is returned when a membership row already exists for the
// (user, organization) pair.
var ErrAlreadyMember = errors.New("user is already a member of this organization")

// ErrInvitationEmailMismatch is returned when a user tries to accept an
// invitation that was issued to a different email address.
var ErrInvitationEmailMismatch = errors.New("invitation is for a different email address")
