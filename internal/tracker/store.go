package tracker

import "context"

// Store persists users, assignments and submissions so a registry can
// recover its state across restarts.
type Store interface {
	LoadUsers(ctx context.Context) ([]*User, error)
	UpsertUser(ctx context.Context, u *User) error
	LoadAssignments(ctx context.Context) ([]*Assignment, error)
	UpsertAssignment(ctx context.Context, a *Assignment) error
	UpsertSubmission(ctx context.Context, sub Submission) error
}
