package memsvc

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/memu-bridge/internal/chunker"
)

// sqliteService implements Service on a SQLite metadata store. The
// "inmemory" provider keeps the database inside the daemon process, which
// is the whole reason the bridge runs as a persistent daemon.
type sqliteService struct {
	db      *sql.DB
	cfg     Config
	entropy *rand.Rand
}

// New constructs a Service from the given configuration.
func New(cfg Config) (Service, error) {
	provider := "inmemory"
	path := ""
	if cfg.DatabaseConfig != nil && cfg.DatabaseConfig.MetadataStore != nil {
		if p := strings.TrimSpace(cfg.DatabaseConfig.MetadataStore.Provider); p != "" {
			provider = strings.ToLower(p)
		}
		path = cfg.DatabaseConfig.MetadataStore.Path
	}

	var db *sql.DB
	var err error
	switch provider {
	case "inmemory":
		db, err = sql.Open("sqlite", ":memory:")
		if err == nil {
			// A pooled second connection would see a different empty
			// in-memory database.
			db.SetMaxOpenConns(1)
		}
	case "sqlite":
		if path == "" {
			path = filepath.Join("data", "memu.db")
		}
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		db, err = sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	default:
		return nil, fmt.Errorf("unsupported metadata_store provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &sqliteService{
		db:      db,
		cfg:     cfg,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *sqliteService) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *sqliteService) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_items (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL,
		content      TEXT NOT NULL,
		resource_url TEXT,
		seq          INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_user_category ON memory_items(user_id, category);
	CREATE INDEX IF NOT EXISTS idx_items_created ON memory_items(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// resourceMessage is the on-disk shape of one normalized conversation
// message inside a resource file.
type resourceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *sqliteService) Memorize(ctx context.Context, p MemorizeParams) (*MemorizeResult, error) {
	if p.ResourceURL == "" {
		return nil, fmt.Errorf("memorize: resource_url is required")
	}

	raw, err := os.ReadFile(p.ResourceURL)
	if err != nil {
		return nil, fmt.Errorf("read resource: %w", err)
	}

	var messages []resourceMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("memorize: resource %s holds no messages", p.ResourceURL)
	}

	var lines []string
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	transcript := strings.Join(lines, "\n\n")

	pieces := chunker.Split(transcript, s.chunkOptions())

	user := p.User
	if user == "" {
		user = s.cfg.userID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res := &MemorizeResult{ResourceURL: p.ResourceURL, UserID: user}
	seenCategory := map[string]bool{}

	for seq, piece := range pieces {
		id := s.newID()
		category := s.categorize(piece)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO memory_items (id, user_id, category, content, resource_url, seq, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, user, category, piece, p.ResourceURL, seq, now)
		if err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
		res.ItemIDs = append(res.ItemIDs, id)
		if !seenCategory[category] {
			seenCategory[category] = true
			res.Categories = append(res.Categories, category)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *sqliteService) chunkOptions() chunker.Options {
	opts := chunker.DefaultOptions()
	if mc := s.cfg.MemorizeConfig; mc != nil {
		if mc.ChunkTargetSize > 0 {
			opts.TargetSize = mc.ChunkTargetSize
		}
		if mc.ChunkMaxSize > 0 {
			opts.MaxSize = mc.ChunkMaxSize
		}
	}
	return opts
}

// categorize assigns a piece to the first configured rule with a matching
// keyword. A rule without keywords is a catch-all.
func (s *sqliteService) categorize(text string) string {
	lower := strings.ToLower(text)
	rules := s.cfg.categories()
	for _, rule := range rules {
		if len(rule.Keywords) == 0 {
			return rule.Name
		}
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Name
			}
		}
	}
	// All rules had keywords and none matched; fall back to the last rule.
	return rules[len(rules)-1].Name
}

func (s *sqliteService) ListCategories(ctx context.Context, where *CategoryFilter) ([]Category, error) {
	query := `SELECT category, user_id, COUNT(*), MAX(created_at)
		FROM memory_items`
	var args []any
	if where != nil && where.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, where.UserID)
	}
	query += ` GROUP BY category, user_id ORDER BY category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		var updated string
		if err := rows.Scan(&c.Name, &c.UserID, &c.Items, &updated); err != nil {
			return nil, err
		}
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteService) Probe(ctx context.Context) error {
	var n int
	return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_items`).Scan(&n)
}
