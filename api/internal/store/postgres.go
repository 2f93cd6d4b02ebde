package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"

	"neuromap/api/internal/pipeline"
)

const schema = `
create table if not exists scan_sessions (
    id          text primary key,
    created_at  timestamptz not null default now(),
    no_tumor    boolean not null default false,
    tumor_types text not null default '',
    payload     jsonb not null,
    updated_at  timestamptz not null default now()
);
create index if not exists scan_sessions_created_at_idx on scan_sessions(created_at);`

// PGStore keeps reports as jsonb in scan_sessions.
type PGStore struct {
	db *sqlx.DB
}

func NewPGStore(db *sqlx.DB) *PGStore { return &PGStore{db: db} }

// OpenPG открывает пул через драйвер pgx и проверяет соединение.
func OpenPG(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Open: %w", err)
	}
	// connection pool tune (нагрузка до ~20 rps)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Save — upsert по id; updated_at обновляется, created_at остаётся первым.
func (s *PGStore) Save(ctx context.Context, r *pipeline.Report) error {
	if r == nil {
		return errors.New("nil report")
	}
	if err := validID(r.SessionID); err != nil {
		return err
	}
	js, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	const q = `
insert into scan_sessions(id, created_at, no_tumor, tumor_types, payload)
values ($1,$2,$3,$4,$5)
on conflict (id)
do update set no_tumor=excluded.no_tumor, tumor_types=excluded.tumor_types,
              payload=excluded.payload, updated_at=now()`
	_, err = s.db.ExecContext(ctx, q, r.SessionID, created, r.NoTumor, tumorTypes(r), js)
	return err
}

func (s *PGStore) Load(ctx context.Context, id string) (*pipeline.Report, error) {
	if err := validID(id); err != nil {
		return nil, ErrNotFound
	}
	var js []byte
	err := s.db.GetContext(ctx, &js, `select payload from scan_sessions where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var r pipeline.Report
	if err := json.Unmarshal(js, &r); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &r, nil
}

// PurgeOlderThan удаляет сессии старше d и возвращает число удалённых строк.
func (s *PGStore) PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from scan_sessions where updated_at < $1`, time.Now().Add(-d))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGStore) Close() error { return s.db.Close() }

// tumorTypes — отсортированный список типов через запятую, для фильтрации в SQL.
func tumorTypes(r *pipeline.Report) string {
	seen := map[string]bool{}
	for _, f := range r.Findings {
		seen[string(f.TumorType)] = true
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// ResolveDSN prefers DATABASE_URL and otherwise builds a DSN from POSTGRES_* / PG* vars.
func ResolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	user := getenvDefault("POSTGRES_USER", "neuromap")
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getenvDefault("PGHOST", "db")
	port := getenvDefault("PGPORT", "5432")
	db := getenvDefault("POSTGRES_DB", "neuromap")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getenvDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// SafeDSNSummary — DSN для логов, без пароля.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
