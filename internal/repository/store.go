package repository

import "github.com/jmoiron/sqlx"

// NewPostgresStore wires the sqlx repositories into a Store that closes db.
func NewPostgresStore(db *sqlx.DB) *Store {
	return NewStore(
		NewUserRepository(db),
		NewFollowRepository(db),
		NewPostRepository(db),
		NewCommentRepository(db),
		db.Close,
	)
}
