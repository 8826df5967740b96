// Package ledger persists audit trails in SQLite so sessions can be
// verified and replayed after the process that produced them exits.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/clock"
	"github.com/san-kum/fieldcanon/internal/dynamo"
)

const schema = `
CREATE TABLE IF NOT EXISTS trails (
	trail_id      TEXT PRIMARY KEY,
	run_id        TEXT,
	sealed        INTEGER NOT NULL DEFAULT 0,
	record_count  INTEGER NOT NULL DEFAULT 0,
	head_hash     TEXT NOT NULL,
	config_json   TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	trail_id          TEXT NOT NULL,
	seq               INTEGER NOT NULL,
	action            TEXT NOT NULL,
	preset            INTEGER NOT NULL,
	recorded_at       TEXT NOT NULL,
	before_json       TEXT NOT NULL,
	after_json        TEXT NOT NULL,
	energy_invariant  INTEGER NOT NULL,
	canon_compliance  INTEGER NOT NULL,
	prev_hash         TEXT NOT NULL,
	hash              TEXT NOT NULL,
	PRIMARY KEY (trail_id, seq),
	FOREIGN KEY (trail_id) REFERENCES trails(trail_id)
);
`

// ErrNotFound is returned for an unknown trail id.
var ErrNotFound = errors.New("ledger: trail not found")

type Ledger struct {
	db    *sql.DB
	clock clock.Clock
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, c clock.Clock) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := addColumn(db, "trails", "config_json", "TEXT"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Ledger{db: db, clock: c}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// addColumn brings databases created before the column existed up to date.
func addColumn(db *sql.DB, table, column, decl string) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return fmt.Errorf("table info %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// TrailSummary is one row of the trails table.
type TrailSummary struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Sealed    bool      `json:"sealed"`
	Count     int       `json:"count"`
	HeadHash  string    `json:"head_hash"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveExport stores e under its trail id. A trail already in the ledger may
// only be extended: the stored records must be a prefix of e, and a sealed
// trail cannot change at all.
func (l *Ledger) SaveExport(e audit.Export, runID string) error {
	return l.save(e, runID, nil)
}

// SaveSession is SaveExport plus the coefficients the session ran under, so
// the trail can be replayed without the run directory.
func (l *Ledger) SaveSession(e audit.Export, runID string, cfg dynamo.Config) error {
	return l.save(e, runID, &cfg)
}

func (l *Ledger) save(e audit.Export, runID string, cfg *dynamo.Config) error {
	if v := audit.Verify(e.Records); !v.Valid {
		return v.Err()
	}

	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		storedCount  int
		storedSealed bool
	)
	err = tx.QueryRow(`SELECT record_count, sealed FROM trails WHERE trail_id = ?`, e.ID).
		Scan(&storedCount, &storedSealed)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query trail: %w", err)
	}

	var cfgJSON any
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		cfgJSON = string(b)
	}

	now := l.clock.Now().UTC().Format(time.RFC3339Nano)
	if exists {
		if storedSealed {
			return dynamo.ErrSealedAuditTrail.With("trail", e.ID)
		}
		if storedCount > len(e.Records) {
			return dynamo.Newf(dynamo.CodeAuditChainBroken, "trail %s: export has %d records, ledger has %d", e.ID, len(e.Records), storedCount)
		}
		if err := checkPrefix(tx, e, storedCount); err != nil {
			return err
		}
	} else {
		_, err = tx.Exec(
			`INSERT INTO trails (trail_id, run_id, head_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			e.ID, nullable(runID), audit.GenesisHash, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert trail: %w", err)
		}
	}

	for _, r := range e.Records[storedCount:] {
		if err := insertRecord(tx, e.ID, r); err != nil {
			return err
		}
	}

	head := audit.GenesisHash
	if n := len(e.Records); n > 0 {
		head = e.Records[n-1].Hash
	}
	_, err = tx.Exec(
		`UPDATE trails SET sealed = ?, record_count = ?, head_hash = ?, updated_at = ?,
		 run_id = COALESCE(run_id, ?), config_json = COALESCE(config_json, ?) WHERE trail_id = ?`,
		e.Sealed, len(e.Records), head, now, nullable(runID), cfgJSON, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update trail: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func checkPrefix(tx *sql.Tx, e audit.Export, n int) error {
	rows, err := tx.Query(`SELECT seq, hash FROM records WHERE trail_id = ? ORDER BY seq`, e.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			seq  int
			hash string
		)
		if err := rows.Scan(&seq, &hash); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		if i >= n || seq != i || e.Records[i].Hash != hash {
			return dynamo.Newf(dynamo.CodeAuditChainBroken, "trail %s: record %d diverges from ledger", e.ID, i)
		}
		i++
	}
	return rows.Err()
}

func insertRecord(tx *sql.Tx, trailID string, r audit.Record) error {
	before, err := json.Marshal(r.Before)
	if err != nil {
		return fmt.Errorf("marshal before: %w", err)
	}
	after, err := json.Marshal(r.After)
	if err != nil {
		return fmt.Errorf("marshal after: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO records (trail_id, seq, action, preset, recorded_at, before_json, after_json,
		 energy_invariant, canon_compliance, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trailID, r.Seq, string(r.Action), r.Preset, r.Timestamp.UTC().Format(time.RFC3339Nano),
		string(before), string(after), r.EnergyInvariant, r.CanonCompliance, r.PrevHash, r.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert record %d: %w", r.Seq, err)
	}
	return nil
}

// LoadExport rebuilds the export for trailID. Integrity is recomputed from
// the stored records.
func (l *Ledger) LoadExport(trailID string) (audit.Export, error) {
	var sealed bool
	err := l.db.QueryRow(`SELECT sealed FROM trails WHERE trail_id = ?`, trailID).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Export{}, ErrNotFound
	}
	if err != nil {
		return audit.Export{}, fmt.Errorf("query trail: %w", err)
	}

	rows, err := l.db.Query(
		`SELECT seq, action, preset, recorded_at, before_json, after_json,
		 energy_invariant, canon_compliance, prev_hash, hash
		 FROM records WHERE trail_id = ? ORDER BY seq`, trailID)
	if err != nil {
		return audit.Export{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]audit.Record, 0)
	for rows.Next() {
		var (
			r             audit.Record
			action, at    string
			before, after string
		)
		if err := rows.Scan(&r.Seq, &action, &r.Preset, &at, &before, &after,
			&r.EnergyInvariant, &r.CanonCompliance, &r.PrevHash, &r.Hash); err != nil {
			return audit.Export{}, fmt.Errorf("scan record: %w", err)
		}
		r.Action = audit.Action(action)
		if r.Timestamp, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return audit.Export{}, fmt.Errorf("record %d timestamp: %w", r.Seq, err)
		}
		if err := json.Unmarshal([]byte(before), &r.Before); err != nil {
			return audit.Export{}, fmt.Errorf("record %d before: %w", r.Seq, err)
		}
		if err := json.Unmarshal([]byte(after), &r.After); err != nil {
			return audit.Export{}, fmt.Errorf("record %d after: %w", r.Seq, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return audit.Export{}, err
	}

	return audit.Export{
		ID:        trailID,
		Records:   records,
		Sealed:    sealed,
		Count:     len(records),
		Integrity: audit.Verify(records),
	}, nil
}

// Coefficients returns the configuration stored with trailID. ok is false
// when the trail was saved without one.
func (l *Ledger) Coefficients(trailID string) (cfg dynamo.Config, ok bool, err error) {
	var raw sql.NullString
	err = l.db.QueryRow(`SELECT config_json FROM trails WHERE trail_id = ?`, trailID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, false, ErrNotFound
	}
	if err != nil {
		return cfg, false, fmt.Errorf("query trail: %w", err)
	}
	if !raw.Valid {
		return cfg, false, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &cfg); err != nil {
		return cfg, false, fmt.Errorf("trail %s config: %w", trailID, err)
	}
	return cfg, true, nil
}

// List returns every trail, most recently updated first.
func (l *Ledger) List() ([]TrailSummary, error) {
	rows, err := l.db.Query(
		`SELECT trail_id, COALESCE(run_id, ''), sealed, record_count, head_hash, created_at, updated_at
		 FROM trails ORDER BY updated_at DESC, trail_id`)
	if err != nil {
		return nil, fmt.Errorf("query trails: %w", err)
	}
	defer rows.Close()

	var out []TrailSummary
	for rows.Next() {
		var (
			s                TrailSummary
			created, updated string
		)
		if err := rows.Scan(&s.ID, &s.RunID, &s.Sealed, &s.Count, &s.HeadHash, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan trail: %w", err)
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
