// Package store persists applied blocks, their per-statement results and
// state snapshots in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/encoding"
	"github.com/funvibe/funledger/internal/ledger"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS blocks (
	height     INTEGER PRIMARY KEY,
	session    TEXT NOT NULL REFERENCES sessions(id),
	digest     TEXT NOT NULL,
	applied_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS statements (
	height     INTEGER NOT NULL REFERENCES blocks(height),
	idx        INTEGER NOT NULL,
	body       BLOB NOT NULL,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	error_kind TEXT,
	error      TEXT,
	output     TEXT,
	mana       INTEGER NOT NULL,
	subject    TEXT NOT NULL,
	PRIMARY KEY (height, idx)
);
CREATE TABLE IF NOT EXISTS snapshots (
	height INTEGER PRIMARY KEY,
	digest TEXT NOT NULL,
	state  BLOB NOT NULL
);
`

// ErrNoSnapshot is returned by LatestSnapshot on an empty store.
var ErrNoSnapshot = errors.New("no snapshot stored")

type Store struct {
	db      *sql.DB
	session string
}

// Open opens or creates the database at path and starts a new session.
// Every block written through the returned Store is tagged with it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	s := &Store{db: db, session: uuid.NewString()}
	if _, err := db.ExecContext(ctx, "INSERT INTO sessions (id, started_at) VALUES (?, ?)", s.session, time.Now().Unix()); err != nil {
		db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Session is the id of this store's writing session.
func (s *Store) Session() string { return s.session }

// Block is an applied block as read back from the store.
type Block struct {
	Height     uint64
	Session    string
	Digest     string
	Statements []ast.Statement
	Records    []Record
}

// Record is the stored outcome of one statement.
type Record struct {
	Index     int
	Kind      string
	Status    string
	ErrorKind string
	Error     string
	Output    string
	Mana      uint64
	Subject   string
}

// RecordOf converts a ledger result into its stored form.
func RecordOf(r ledger.Result) Record {
	rec := Record{
		Index:   r.Index,
		Kind:    r.Kind,
		Status:  r.Status.String(),
		Mana:    r.ManaUsed,
		Subject: r.Subject.String(),
	}
	if r.Err != nil {
		rec.ErrorKind = r.Err.Kind.String()
		rec.Error = r.Err.Message
	}
	if r.Output != nil {
		rec.Output = r.Output.String()
	}
	return rec
}

// SaveBlock records the statements of the block at height, their results
// and the digest of the state after it.
func (s *Store) SaveBlock(ctx context.Context, height uint64, stmts []ast.Statement, results []ledger.Result, digest string) error {
	if len(stmts) != len(results) {
		return fmt.Errorf("block %d: %d statements but %d results", height, len(stmts), len(results))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO blocks (height, session, digest, applied_at) VALUES (?, ?, ?, ?)",
		int64(height), s.session, digest, time.Now().Unix()); err != nil {
		return fmt.Errorf("block %d: %w", height, err)
	}
	for i, stmt := range stmts {
		rec := RecordOf(results[i])
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO statements (height, idx, body, kind, status, error_kind, error, output, mana, subject)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(height), i, encoding.EncodeStatement(stmt), rec.Kind, rec.Status,
			nullable(rec.ErrorKind), nullable(rec.Error), nullable(rec.Output), int64(rec.Mana), rec.Subject); err != nil {
			return fmt.Errorf("block %d statement %d: %w", height, i, err)
		}
	}
	return tx.Commit()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Height returns the highest stored block, and false when there is none.
func (s *Store) Height(ctx context.Context) (uint64, bool, error) {
	var h sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(height) FROM blocks").Scan(&h); err != nil {
		return 0, false, err
	}
	return uint64(h.Int64), h.Valid, nil
}

// Blocks returns the stored blocks with height greater than after, in
// height order.
func (s *Store) Blocks(ctx context.Context, after uint64) ([]*Block, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT height, session, digest FROM blocks WHERE height > ? ORDER BY height", int64(after))
	if err != nil {
		return nil, err
	}
	var blocks []*Block
	for rows.Next() {
		b := &Block{}
		var h int64
		if err := rows.Scan(&h, &b.Session, &b.Digest); err != nil {
			rows.Close()
			return nil, err
		}
		b.Height = uint64(h)
		blocks = append(blocks, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if err := s.loadStatements(ctx, b); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

func (s *Store) loadStatements(ctx context.Context, b *Block) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, body, kind, status, error_kind, error, output, mana, subject
		 FROM statements WHERE height = ? ORDER BY idx`, int64(b.Height))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec                   Record
			body                  []byte
			errKind, errMsg, outp sql.NullString
			mana                  int64
		)
		if err := rows.Scan(&rec.Index, &body, &rec.Kind, &rec.Status, &errKind, &errMsg, &outp, &mana, &rec.Subject); err != nil {
			return err
		}
		stmt, err := encoding.DecodeStatement(body)
		if err != nil {
			return fmt.Errorf("block %d statement %d: %w", b.Height, rec.Index, err)
		}
		rec.ErrorKind, rec.Error, rec.Output, rec.Mana = errKind.String, errMsg.String, outp.String, uint64(mana)
		b.Statements = append(b.Statements, stmt)
		b.Records = append(b.Records, rec)
	}
	return rows.Err()
}

// SaveSnapshot stores the encoded state as of its height.
func (s *Store) SaveSnapshot(ctx context.Context, state *ledger.State) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (height, digest, state) VALUES (?, ?, ?)",
		int64(state.Height), state.Digest().String(), state.Encode())
	return err
}

// LatestSnapshot restores the most recent snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*ledger.State, error) {
	var (
		data   []byte
		digest string
	)
	err := s.db.QueryRowContext(ctx, "SELECT state, digest FROM snapshots ORDER BY height DESC LIMIT 1").Scan(&data, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	state, err := ledger.DecodeState(data)
	if err != nil {
		return nil, err
	}
	if got := state.Digest().String(); got != digest {
		return nil, fmt.Errorf("snapshot at height %d is corrupt: digest %s, recorded %s", state.Height, got, digest)
	}
	return state, nil
}
