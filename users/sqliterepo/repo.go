// Package sqliterepo provides a SQLite-backed user directory so seeded users
// survive process restarts in single-node deployments.
package sqliterepo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/netvista/portal-auth/users"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

var _ users.UserRepo = (*Repo)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL DEFAULT '',
	permissions    TEXT NOT NULL DEFAULT '[]',
	tenant_id      TEXT NOT NULL DEFAULT '',
	account_number TEXT NOT NULL DEFAULT '',
	password_hash  TEXT NOT NULL,
	active         INTEGER NOT NULL DEFAULT 1,
	created_at     TIMESTAMP NOT NULL,
	last_login     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`

// Repo is a UserRepo backed by a SQLite database.
type Repo struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath. Use ":memory:" for an
// in-memory database in tests.
func New(dbPath string) (*Repo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "[sqliterepo.New] open %s", dbPath)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqliterepo.New] pragma wal")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqliterepo.New] create schema")
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Upsert(user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	perms, err := json.Marshal(user.Permissions)
	if err != nil {
		return errors.Wrap(err, "[Repo.Upsert] marshal permissions")
	}

	_, err = r.db.Exec(`
		INSERT INTO users (id, email, name, role, permissions, tenant_id, account_number, password_hash, active, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			permissions = excluded.permissions,
			tenant_id = excluded.tenant_id,
			account_number = excluded.account_number,
			password_hash = excluded.password_hash,
			active = excluded.active`,
		user.ID, user.Email, user.Name, string(user.Role), string(perms),
		user.TenantID, user.AccountNumber, user.PasswordHash,
		boolToInt(user.Active), user.CreatedAt, nullableTime(user.LastLogin))
	return errors.Wrap(err, "[Repo.Upsert] insert user")
}

func (r *Repo) Delete(email string) error {
	res, err := r.db.Exec(`DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return errors.Wrap(err, "[Repo.Delete] delete user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("user not found")
	}
	return nil
}

func (r *Repo) GetByEmail(email string) (*users.User, error) {
	return r.scanOne(`SELECT id, email, name, role, permissions, tenant_id, account_number, password_hash, active, created_at, last_login
		FROM users WHERE email = ?`, email)
}

func (r *Repo) GetByID(id string) (*users.User, error) {
	return r.scanOne(`SELECT id, email, name, role, permissions, tenant_id, account_number, password_hash, active, created_at, last_login
		FROM users WHERE id = ?`, id)
}

func (r *Repo) List(offset, limit int) ([]*users.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT id, email, name, role, permissions, tenant_id, account_number, password_hash, active, created_at, last_login
		FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.List] query users")
	}
	defer rows.Close()

	var list []*users.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, errors.Wrap(rows.Err(), "[Repo.List] rows")
}

func (r *Repo) SetActive(email string, active bool) error {
	res, err := r.db.Exec(`UPDATE users SET active = ? WHERE email = ?`, boolToInt(active), email)
	if err != nil {
		return errors.Wrap(err, "[Repo.SetActive] update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("user not found")
	}
	return nil
}

func (r *Repo) SetLastLogin(email string) error {
	res, err := r.db.Exec(`UPDATE users SET last_login = ? WHERE email = ?`, time.Now().UTC(), email)
	if err != nil {
		return errors.Wrap(err, "[Repo.SetLastLogin] update user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("user not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repo) scanOne(query string, arg any) (*users.User, error) {
	u, err := scanUser(r.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("user not found")
	}
	return u, err
}

func scanUser(row rowScanner) (*users.User, error) {
	var (
		u         users.User
		role      string
		perms     string
		active    int
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &perms, &u.TenantID,
		&u.AccountNumber, &u.PasswordHash, &active, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "[sqliterepo.scanUser] scan")
	}
	u.Role = users.Role(role)
	u.Active = active != 0
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	if err := json.Unmarshal([]byte(perms), &u.Permissions); err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.scanUser] unmarshal permissions")
	}
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
