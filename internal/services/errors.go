// Package services defines the business logic of the helpdesk: identity and
// sessions, the report store with its advisory lock, notifications, the FAQ
// knowledge base, and chat routing.
//
// This file centralizes the service-level error values so that they can be
// returned consistently by service methods and mapped to HTTP status codes by
// the handler layer. Lookups that miss return the matching *NotFound error;
// deletes and mark-read operations on absent ids are no-ops and return nil;
// lock conflicts are reported through boolean results rather than errors.
package services

import "errors"

// Identity errors.
var (
	// ErrInvalidCredentials indicates that no user matches the given email
	// and password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthenticated is returned when a session token is missing,
	// malformed, expired, revoked, or belongs to a deleted user.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when an email is already used by another user.
	ErrEmailTaken = errors.New("email already in use")

	// ErrInvalidRole is returned for a role outside master/admin/staff.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidPassword is returned when a password cannot be hashed
	// (empty or longer than 72 bytes).
	ErrInvalidPassword = errors.New("invalid password")
)

// Report errors.
var (
	// ErrReportNotFound indicates that the requested report does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidStatus is returned for a status outside the report lifecycle.
	ErrInvalidStatus = errors.New("invalid report status")

	// ErrVersionConflict is returned when an update carries an expected
	// version that no longer matches the stored report.
	ErrVersionConflict = errors.New("report was modified concurrently")
)

// Notification, FAQ and chat errors.
var (
	// ErrNotificationNotFound indicates that the notification does not exist.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidNotificationType is returned for a type outside
	// info/success/warning/error.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrFAQNotFound indicates that the requested FAQ entry does not exist.
	ErrFAQNotFound = errors.New("faq not found")

	// ErrMessageNotFound indicates that the chat message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyMessage is returned when a chat message has no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidChannel is returned when an explicit chat channel does not
	// belong to the sender and recipient.
	ErrInvalidChannel = errors.New("chat channel does not match participants")

	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)
