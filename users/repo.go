package users

// UserRepo abstracts the user directory so the session lifecycle can run
// against the SQLite-backed directory in production and fakes in tests.
type UserRepo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetActive(email string, active bool) error
	SetLastLogin(email string) error
}
