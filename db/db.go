package db

import (
	"database/sql"
	"errors"
	"time"

	"chatd/models"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrStoreFull    = errors.New("user store is full")
)

// MaxUsernameLen bounds usernames at the width the account record reserves.
const MaxUsernameLen = 49

// DB is the account store. All mutations go through SQLite's single writer
// connection, so the persisted form always reflects the last completed
// mutation before the call returns.
type DB struct {
	conn     *sql.DB
	maxUsers int
}

func New(path string, maxUsers int) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, maxUsers: maxUsers}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	query := `CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		online INTEGER NOT NULL DEFAULT 0,
		last_seen TEXT NOT NULL
	)`
	if _, err := db.conn.Exec(query); err != nil {
		return err
	}

	return nil
}

// ResetPresence clears every online flag. Sessions do not survive a server
// restart, so stale flags from a previous run are meaningless.
func (db *DB) ResetPresence() error {
	_, err := db.conn.Exec("UPDATE accounts SET online = 0")
	return err
}

// Register creates an account with a bcrypt digest of the password.
// Returns ErrUserExists for a taken username and ErrStoreFull once the
// configured account limit is reached.
func (db *DB) Register(username, password string) error {
	exists, err := db.UserExists(username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	count, err := db.Count()
	if err != nil {
		return err
	}
	if count >= db.maxUsers {
		return ErrStoreFull
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.conn.Exec(
		"INSERT INTO accounts (username, password, online, last_seen) VALUES (?, ?, 0, ?)",
		username, string(hashed), now,
	)
	return err
}

// Authenticate compares the supplied password against the stored digest.
// Plaintext is never stored or compared.
func (db *DB) Authenticate(username, password string) (bool, error) {
	var hashed string
	err := db.conn.QueryRow("SELECT password FROM accounts WHERE username = ?", username).Scan(&hashed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
	return err == nil, nil
}

// SetOnline flips the account's presence flag and stamps last_seen.
func (db *DB) SetOnline(username string, online bool) error {
	flag := 0
	if online {
		flag = 1
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := db.conn.Exec(
		"UPDATE accounts SET online = ?, last_seen = ? WHERE username = ?",
		flag, now, username,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (db *DB) Find(username string) (*models.Account, error) {
	var acc models.Account
	var online int
	var lastSeen string

	err := db.conn.QueryRow(
		"SELECT id, username, password, online, last_seen FROM accounts WHERE username = ?",
		username,
	).Scan(&acc.ID, &acc.Username, &acc.Password, &online, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	acc.Online = online != 0
	acc.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
	return &acc, nil
}

func (db *DB) UserExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) Count() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts").Scan(&count)
	return count, err
}
