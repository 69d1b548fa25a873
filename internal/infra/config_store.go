package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/sigwatch/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// EncryptedConfigStore implements domain.ConfigStore using a SQLCipher
// encrypted SQLite database. Every mutation also appends a row to the
// change table in the same transaction.
type EncryptedConfigStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedConfigStore opens (or creates) the config database in dir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedConfigStore(dir string, key []byte) (*EncryptedConfigStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	dbPath := filepath.Join(dir, domain.ConfigDBName)

	// Processes starting together create and migrate the file one at a time
	lock := flock.New(dbPath + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock config database: %w", err)
	}
	defer lock.Unlock()

	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Verify the key by touching the schema
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedConfigStore{db: db, dbPath: dbPath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config database: %w", err)
	}
	return store, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS config (
		id TEXT PRIMARY KEY NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_config_key ON config(key);`,

	`CREATE TRIGGER IF NOT EXISTS update_config_timestamp
	AFTER UPDATE ON config
	FOR EACH ROW
	BEGIN
		UPDATE config SET updated_at = strftime('%s', 'now') WHERE id = NEW.id;
	END;`,

	`CREATE TABLE IF NOT EXISTS change (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		cfgid TEXT,
		ctime INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	CREATE INDEX IF NOT EXISTS idx_change_key ON change(key);
	CREATE INDEX IF NOT EXISTS idx_change_ctime ON change(ctime);`,
}

// migrate applies pending migrations, tracked with PRAGMA user_version.
func (s *EncryptedConfigStore) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database file path.
func (s *EncryptedConfigStore) Path() string {
	return s.dbPath
}

// UpsertByKey inserts when key is absent, updates when exactly one row has
// key and leaves several rows alone (ok=false).
func (s *EncryptedConfigStore) UpsertByKey(key, value string) (string, bool, error) {
	var id string
	ok := false
	err := s.inTx(func(tx *sql.Tx) error {
		ids, err := idsByKey(tx, key)
		if err != nil {
			return err
		}

		switch len(ids) {
		case 0:
			id = uuid.NewString()
			if _, err := tx.Exec(`INSERT INTO config (id, key, value) VALUES (?, ?, ?)`, id, key, value); err != nil {
				return err
			}
		case 1:
			id = ids[0]
			if _, err := tx.Exec(`UPDATE config SET value = ? WHERE id = ?`, value, id); err != nil {
				return err
			}
		default:
			return nil
		}
		ok = true
		return recordChange(tx, key, id)
	})
	if err != nil {
		return "", false, err
	}
	return id, ok, nil
}

// Insert always adds a new row.
func (s *EncryptedConfigStore) Insert(key, value string) (string, error) {
	id := uuid.NewString()
	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO config (id, key, value) VALUES (?, ?, ?)`, id, key, value); err != nil {
			return err
		}
		return recordChange(tx, key, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Remove deletes a row by id.
func (s *EncryptedConfigStore) Remove(id string) (bool, error) {
	removed := false
	err := s.inTx(func(tx *sql.Tx) error {
		var key string
		err := tx.QueryRow(`SELECT key FROM config WHERE id = ?`, id).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM config WHERE id = ?`, id); err != nil {
			return err
		}
		removed = true
		return recordChange(tx, key, id)
	})
	return removed, err
}

// GetByKey returns all rows with key.
func (s *EncryptedConfigStore) GetByKey(key string) ([]domain.ConfigItem, error) {
	return s.queryItems(`SELECT id, key, value, created_at, updated_at FROM config WHERE key = ? ORDER BY created_at, id`, key)
}

// GetByID returns the row with id, or nil if absent.
func (s *EncryptedConfigStore) GetByID(id string) (*domain.ConfigItem, error) {
	items, err := s.queryItems(`SELECT id, key, value, created_at, updated_at FROM config WHERE id = ?`, id)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// List returns every row ordered by key.
func (s *EncryptedConfigStore) List() ([]domain.ConfigItem, error) {
	return s.queryItems(`SELECT id, key, value, created_at, updated_at FROM config ORDER BY key, created_at, id`)
}

// ChangesSince returns change records with id greater than after.
func (s *EncryptedConfigStore) ChangesSince(after int64) ([]domain.ConfigChange, error) {
	rows, err := s.db.Query(`SELECT id, key, COALESCE(cfgid, ''), ctime FROM change WHERE id > ? ORDER BY id`, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []domain.ConfigChange
	for rows.Next() {
		var c domain.ConfigChange
		if err := rows.Scan(&c.ID, &c.Key, &c.CfgID, &c.CTime); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Close releases the database connection.
func (s *EncryptedConfigStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *EncryptedConfigStore) queryItems(query string, args ...any) ([]domain.ConfigItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ConfigItem
	for rows.Next() {
		var it domain.ConfigItem
		if err := rows.Scan(&it.ID, &it.Key, &it.Value, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *EncryptedConfigStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func idsByKey(tx *sql.Tx, key string) ([]string, error) {
	rows, err := tx.Query(`SELECT id FROM config WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func recordChange(tx *sql.Tx, key, cfgID string) error {
	_, err := tx.Exec(`INSERT INTO change (key, cfgid) VALUES (?, ?)`, key, cfgID)
	return err
}

// Ensure EncryptedConfigStore implements domain.ConfigStore.
var _ domain.ConfigStore = (*EncryptedConfigStore)(nil)
