// Package store implements domain.Store over an embedded SQLite database
// with an FTS5 virtual table kept in sync via triggers, following the
// structure (single-writer SQLite handle, lazily-loaded in-memory vector
// cache) the pack's local memory subsystem uses for the same job.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"engram/internal/config"
	"engram/internal/domain"
)

// Store implements domain.Store backed by SQLite + FTS5. Namespace filtering
// is baked into every query method here, per the spec's design note that
// isolation must live at the query layer rather than in a caller-side
// wrapper.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	dim    int

	maxFTSCandidates  int
	maxScanCandidates int

	vecIdx *vecIndex
}

// Open creates or opens the SQLite database under cfg.DataDir, runs pending
// migrations, and returns a ready Store. embeddingDim is the dimension the
// configured Embedder advertises; it is recorded in the meta table on first
// run and checked against on subsequent opens.
func Open(cfg config.StoreConfig, embeddingDim int, logger *slog.Logger) (*Store, error) {
	dbPath := cfg.DataDir + "/memory.db"

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, domain.NewError("Store.Open", domain.ErrStoreUnavailable, err.Error())
	}

	// Single-writer discipline: one physical connection, serialized by the
	// database/sql pool itself.
	db.SetMaxOpenConns(1)

	busyMS := int(cfg.BusyTimeout / time.Millisecond)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyMS),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, domain.NewError("Store.Open", domain.ErrStoreUnavailable, "pragma: "+err.Error())
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureMeta(db, embeddingDim); err != nil {
		db.Close()
		return nil, err
	}

	maxFTS := cfg.MaxFTSCandidates
	if maxFTS <= 0 {
		maxFTS = 20
	}
	maxScan := cfg.MaxScanCandidates
	if maxScan <= 0 {
		maxScan = 10000
	}

	return &Store{
		db:                db,
		logger:            logger,
		dim:               embeddingDim,
		maxFTSCandidates:  maxFTS,
		maxScanCandidates: maxScan,
		vecIdx:            newVecIndex(),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// Put implements domain.Store.
func (s *Store) Put(ctx context.Context, m domain.Memory) error {
	const insert = `
		INSERT INTO memories (
			id, content, entity, category, confidence, embedding,
			source, namespace, tags, access_count, decay_rate,
			created_at, updated_at, last_accessed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, insert,
		m.ID, m.Content, m.Entity, string(m.Category), m.Confidence, encodeEmbedding(m.Embedding),
		string(m.Source), m.Namespace, encodeTags(m.Tags), m.AccessCount, m.DecayRate,
		m.CreatedAt, m.UpdatedAt, m.LastAccessed,
	)
	if isUniqueViolation(err) {
		return domain.NewError("Store.Put", domain.ErrDuplicateID, m.ID)
	}
	if err != nil {
		return domain.NewError("Store.Put", domain.ErrStoreUnavailable, err.Error())
	}
	if len(m.Embedding) > 0 && s.vecIdx.isLoaded() {
		s.vecIdx.put(m)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner, dim int) (domain.Memory, error) {
	var (
		m         domain.Memory
		category  string
		source    string
		tags      string
		embedding []byte
	)
	if err := row.Scan(
		&m.ID, &m.Content, &m.Entity, &category, &m.Confidence, &embedding,
		&source, &m.Namespace, &tags, &m.AccessCount, &m.DecayRate,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessed,
	); err != nil {
		return m, err
	}
	m.Category = domain.Category(category)
	m.Source = domain.Source(source)
	m.Tags = decodeTags(tags)
	if vec, ok := decodeEmbedding(embedding, dim); ok {
		m.Embedding = vec
	}
	return m, nil
}

const memoryColumns = `
	id, content, entity, category, confidence, embedding,
	source, namespace, tags, access_count, decay_rate,
	created_at, updated_at, last_accessed
`

// Get implements domain.Store.
func (s *Store) Get(ctx context.Context, id string) (domain.Memory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row, s.dim)
	if err == sql.ErrNoRows {
		return domain.Memory{}, domain.NewError("Store.Get", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Memory{}, domain.NewError("Store.Get", domain.ErrStoreUnavailable, err.Error())
	}
	return m, nil
}

// List implements domain.Store. Deterministic order by created_at DESC, id ASC.
func (s *Store) List(ctx context.Context, filter domain.ListFilter, limit, offset int) ([]domain.Memory, int, error) {
	where, args := listWhere(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM memories" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewError("Store.List", domain.ErrStoreUnavailable, err.Error())
	}

	query := "SELECT " + memoryColumns + " FROM memories" + where +
		" ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, domain.NewError("Store.List", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	var out []domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows, s.dim)
		if err != nil {
			return nil, 0, domain.NewError("Store.List", domain.ErrStoreUnavailable, err.Error())
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func listWhere(filter domain.ListFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Namespace != "" {
		clauses = append(clauses, "namespace = ?")
		args = append(args, filter.Namespace)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// DeleteByID implements domain.Store, cascading to referencing contradictions.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.NewError("Store.DeleteByID", domain.ErrStoreUnavailable, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return false, domain.NewError("Store.DeleteByID", domain.ErrStoreUnavailable, err.Error())
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM contradictions WHERE memory1_id = ? OR memory2_id = ?", id, id); err != nil {
		return false, domain.NewError("Store.DeleteByID", domain.ErrStoreUnavailable, err.Error())
	}
	if err := tx.Commit(); err != nil {
		return false, domain.NewError("Store.DeleteByID", domain.ErrStoreUnavailable, err.Error())
	}
	s.vecIdx.remove(id)
	return true, nil
}

// BulkDelete implements domain.Store.
func (s *Store) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	count := 0
	for _, id := range ids {
		deleted, err := s.DeleteByID(ctx, id)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}
	return count, nil
}

// FTSQuery implements domain.Store using the FTS5 bm25() ranking function.
// Falls back to a LIKE scan when the query string isn't valid FTS5 MATCH
// syntax (unbalanced quotes, leading operators).
func (s *Store) FTSQuery(ctx context.Context, namespace string, category domain.Category, terms string, limit int) ([]domain.FTSHit, error) {
	if limit <= 0 || limit > s.maxFTSCandidates {
		limit = s.maxFTSCandidates
	}
	terms = strings.TrimSpace(terms)
	if terms == "" {
		return nil, nil
	}

	var clauses []string
	args := []any{terms}
	if namespace != "" {
		clauses = append(clauses, "m.namespace = ?")
		args = append(args, namespace)
	}
	if category != "" {
		clauses = append(clauses, "m.category = ?")
		args = append(args, string(category))
	}
	where := ""
	if len(clauses) > 0 {
		where = " AND " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)

	query := `
		SELECT m.id, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ?` + where + `
		ORDER BY rank
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return s.ftsLikeFallback(ctx, namespace, category, terms, limit)
	}
	defer rows.Close()

	var hits []domain.FTSHit
	for rows.Next() {
		var h domain.FTSHit
		if err := rows.Scan(&h.ID, &h.Rank); err != nil {
			return nil, domain.NewError("Store.FTSQuery", domain.ErrStoreUnavailable, err.Error())
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) ftsLikeFallback(ctx context.Context, namespace string, category domain.Category, terms string, limit int) ([]domain.FTSHit, error) {
	var clauses []string
	args := []any{"%" + terms + "%"}
	clauses = append(clauses, "content LIKE ?")
	if namespace != "" {
		clauses = append(clauses, "namespace = ?")
		args = append(args, namespace)
	}
	if category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(category))
	}
	args = append(args, limit)

	query := "SELECT id FROM memories WHERE " + strings.Join(clauses, " AND ") + " ORDER BY created_at DESC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewError("Store.FTSQuery", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	var hits []domain.FTSHit
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.NewError("Store.FTSQuery", domain.ErrStoreUnavailable, err.Error())
		}
		hits = append(hits, domain.FTSHit{ID: id, Rank: 0})
	}
	return hits, rows.Err()
}

// IterateEmbedded implements domain.Store, restartable and ordered by id.
// The full embedded universe (up to maxScanCandidates) is cached in-memory
// after the first call; subsequent calls filter the cache instead of
// re-scanning SQLite.
func (s *Store) IterateEmbedded(ctx context.Context, namespace string, filter domain.ListFilter, cap int) ([]domain.EmbeddedRow, error) {
	if cap <= 0 || cap > s.maxScanCandidates {
		cap = s.maxScanCandidates
	}

	if !s.vecIdx.isLoaded() {
		rows, err := s.scanEmbedded(ctx, s.maxScanCandidates)
		if err != nil {
			return nil, err
		}
		s.vecIdx.snapshot(rows, "", "")
	}

	out := s.vecIdx.snapshot(nil, namespace, filter.Category)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > cap {
		out = out[:cap]
	}
	return out, nil
}

func (s *Store) scanEmbedded(ctx context.Context, cap int) ([]domain.EmbeddedRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding, confidence, decay_rate, access_count, last_accessed,
		       created_at, updated_at, entity, category, namespace
		FROM memories WHERE embedding IS NOT NULL
		ORDER BY id ASC LIMIT ?
	`, cap)
	if err != nil {
		return nil, domain.NewError("Store.IterateEmbedded", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	var out []domain.EmbeddedRow
	for rows.Next() {
		var (
			r         domain.EmbeddedRow
			embedding []byte
			category  string
		)
		if err := rows.Scan(&r.ID, &embedding, &r.Confidence, &r.DecayRate, &r.AccessCount, &r.LastAccessed,
			&r.CreatedAt, &r.UpdatedAt, &r.Entity, &category, &r.Namespace); err != nil {
			return nil, domain.NewError("Store.IterateEmbedded", domain.ErrStoreUnavailable, err.Error())
		}
		r.Category = domain.Category(category)
		if vec, ok := decodeEmbedding(embedding, s.dim); ok && vec != nil {
			r.Embedding = vec
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

// BumpAccess implements domain.Store: atomic increment + last_accessed update.
func (s *Store) BumpAccess(ctx context.Context, ids []string, at int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError("Store.BumpAccess", domain.ErrStoreUnavailable, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?")
	if err != nil {
		return domain.NewError("Store.BumpAccess", domain.ErrStoreUnavailable, err.Error())
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, at, id); err != nil {
			return domain.NewError("Store.BumpAccess", domain.ErrStoreUnavailable, err.Error())
		}
	}
	return domain.WrapOp("Store.BumpAccess", tx.Commit())
}

// ApplyMerge implements domain.Store: update winner, delete losers, cascade
// delete referencing contradictions, all in one transaction.
func (s *Store) ApplyMerge(ctx context.Context, winnerID string, loserIDs []string, merged domain.MergedFields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError("Store.ApplyMerge", domain.ErrStoreUnavailable, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		"UPDATE memories SET access_count = ?, tags = ?, confidence = ?, updated_at = ? WHERE id = ?",
		merged.AccessCount, encodeTags(merged.Tags), merged.Confidence, merged.UpdatedAt, winnerID,
	)
	if err != nil {
		return domain.NewError("Store.ApplyMerge", domain.ErrStoreUnavailable, err.Error())
	}

	for _, loserID := range loserIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", loserID); err != nil {
			return domain.NewError("Store.ApplyMerge", domain.ErrStoreUnavailable, err.Error())
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM contradictions WHERE memory1_id = ? OR memory2_id = ?", loserID, loserID); err != nil {
			return domain.NewError("Store.ApplyMerge", domain.ErrStoreUnavailable, err.Error())
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewError("Store.ApplyMerge", domain.ErrStoreUnavailable, err.Error())
	}
	for _, loserID := range loserIDs {
		s.vecIdx.remove(loserID)
	}
	s.vecIdx.invalidate(winnerID)
	return nil
}

// PutContradiction implements domain.Store.
func (s *Store) PutContradiction(ctx context.Context, c domain.Contradiction) error {
	var resolution *string
	if c.ResolutionAction != nil {
		v := string(*c.ResolutionAction)
		resolution = &v
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contradictions (
			id, memory1_id, memory2_id, entity, confidence, reason,
			status, resolution_action, detected_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Memory1ID, c.Memory2ID, c.Entity, c.Confidence, c.Reason,
		string(c.Status), resolution, c.DetectedAt, c.ResolvedAt)
	if isUniqueViolation(err) {
		return domain.NewError("Store.PutContradiction", domain.ErrDuplicateID, c.ID)
	}
	if err != nil {
		return domain.NewError("Store.PutContradiction", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func scanContradiction(row rowScanner) (domain.Contradiction, error) {
	var (
		c          domain.Contradiction
		status     string
		resolution *string
	)
	if err := row.Scan(&c.ID, &c.Memory1ID, &c.Memory2ID, &c.Entity, &c.Confidence, &c.Reason,
		&status, &resolution, &c.DetectedAt, &c.ResolvedAt); err != nil {
		return c, err
	}
	c.Status = domain.ContradictionStatus(status)
	if resolution != nil {
		a := domain.ResolutionAction(*resolution)
		c.ResolutionAction = &a
	}
	return c, nil
}

const contradictionColumns = `
	id, memory1_id, memory2_id, entity, confidence, reason,
	status, resolution_action, detected_at, resolved_at
`

// GetContradictionBetween implements domain.Store, order-independent on the pair.
func (s *Store) GetContradictionBetween(ctx context.Context, id1, id2 string) (*domain.Contradiction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+contradictionColumns+` FROM contradictions
		WHERE (memory1_id = ? AND memory2_id = ?) OR (memory1_id = ? AND memory2_id = ?)`,
		id1, id2, id2, id1)
	c, err := scanContradiction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewError("Store.GetContradictionBetween", domain.ErrStoreUnavailable, err.Error())
	}
	return &c, nil
}

// ListContradictions implements domain.Store.
func (s *Store) ListContradictions(ctx context.Context, status domain.ContradictionStatus, category domain.Category, sort string) ([]domain.Contradiction, error) {
	var clauses []string
	var args []any
	if status != "" {
		clauses = append(clauses, "c.status = ?")
		args = append(args, string(status))
	}
	if category != "" {
		clauses = append(clauses, "m1.category = ?")
		args = append(args, string(category))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	order := "c.detected_at DESC"
	if sort == "confidence" {
		order = "c.confidence DESC"
	}

	query := `SELECT c.id, c.memory1_id, c.memory2_id, c.entity, c.confidence, c.reason,
			c.status, c.resolution_action, c.detected_at, c.resolved_at
		FROM contradictions c
		LEFT JOIN memories m1 ON m1.id = c.memory1_id` + where + `
		ORDER BY ` + order

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewError("Store.ListContradictions", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	var out []domain.Contradiction
	for rows.Next() {
		c, err := scanContradiction(rows)
		if err != nil {
			return nil, domain.NewError("Store.ListContradictions", domain.ErrStoreUnavailable, err.Error())
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveContradiction implements domain.Store.
func (s *Store) ResolveContradiction(ctx context.Context, id string, action domain.ResolutionAction, at int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, "SELECT "+contradictionColumns+" FROM contradictions WHERE id = ?", id)
	c, err := scanContradiction(row)
	if err == sql.ErrNoRows {
		return domain.NewError("Store.ResolveContradiction", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
	}

	status := domain.ContradictionResolved
	if action == domain.ResolutionDismiss {
		status = domain.ContradictionDismissed
	}

	switch action {
	case domain.ResolutionKeepFirst:
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", c.Memory2ID); err != nil {
			return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
		}
	case domain.ResolutionKeepSecond:
		if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", c.Memory1ID); err != nil {
			return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE contradictions SET status = ?, resolution_action = ?, resolved_at = ? WHERE id = ?",
		string(status), string(action), at, id,
	); err != nil {
		return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
	}

	// Cascade: deleting the loser memory removes contradictions referencing it,
	// including this one's sibling rows against other memories.
	switch action {
	case domain.ResolutionKeepFirst:
		if _, err := tx.ExecContext(ctx, "DELETE FROM contradictions WHERE id != ? AND (memory1_id = ? OR memory2_id = ?)", id, c.Memory2ID, c.Memory2ID); err != nil {
			return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
		}
	case domain.ResolutionKeepSecond:
		if _, err := tx.ExecContext(ctx, "DELETE FROM contradictions WHERE id != ? AND (memory1_id = ? OR memory2_id = ?)", id, c.Memory1ID, c.Memory1ID); err != nil {
			return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewError("Store.ResolveContradiction", domain.ErrStoreUnavailable, err.Error())
	}
	switch action {
	case domain.ResolutionKeepFirst:
		s.vecIdx.remove(c.Memory2ID)
	case domain.ResolutionKeepSecond:
		s.vecIdx.remove(c.Memory1ID)
	}
	return nil
}

// DecayBatch implements domain.Store: one transaction per batch of updates.
func (s *Store) DecayBatch(ctx context.Context, updates map[string]float64, at int64) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError("Store.DecayBatch", domain.ErrStoreUnavailable, err.Error())
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "UPDATE memories SET confidence = ?, updated_at = ? WHERE id = ?")
	if err != nil {
		return domain.NewError("Store.DecayBatch", domain.ErrStoreUnavailable, err.Error())
	}
	defer stmt.Close()

	for id, conf := range updates {
		if _, err := stmt.ExecContext(ctx, conf, at, id); err != nil {
			return domain.NewError("Store.DecayBatch", domain.ErrStoreUnavailable, err.Error())
		}
	}
	return domain.WrapOp("Store.DecayBatch", tx.Commit())
}

// DeleteStale implements domain.Store.
func (s *Store) DeleteStale(ctx context.Context, confidenceBelow float64, ageDaysAbove int, at int64) (int, error) {
	cutoff := at - int64(ageDaysAbove)*86400000
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM memories
		WHERE confidence < ? AND created_at < ? AND access_count = 0
	`, confidenceBelow, cutoff)
	if err != nil {
		return 0, domain.NewError("Store.DeleteStale", domain.ErrStoreUnavailable, err.Error())
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, domain.NewError("Store.DeleteStale", domain.ErrStoreUnavailable, err.Error())
		}
		ids = append(ids, id)
	}
	rows.Close()
	return s.BulkDelete(ctx, ids)
}

// Status implements domain.Store, feeding GET /api/status.
func (s *Store) Status(ctx context.Context) (domain.StoreStatus, error) {
	var st domain.StoreStatus
	st.EmbeddingDim = s.dim
	st.ByCategory = map[domain.Category]int{}
	st.ByNamespace = map[string]int{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&st.Total); err != nil {
		return st, domain.NewError("Store.Status", domain.ErrStoreUnavailable, err.Error())
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE embedding IS NOT NULL").Scan(&st.WithEmbeddings); err != nil {
		return st, domain.NewError("Store.Status", domain.ErrStoreUnavailable, err.Error())
	}

	catRows, err := s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM memories GROUP BY category")
	if err != nil {
		return st, domain.NewError("Store.Status", domain.ErrStoreUnavailable, err.Error())
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat string
		var n int
		if err := catRows.Scan(&cat, &n); err != nil {
			return st, domain.NewError("Store.Status", domain.ErrStoreUnavailable, err.Error())
		}
		st.ByCategory[domain.Category(cat)] = n
	}

	nsRows, err := s.db.QueryContext(ctx, "SELECT namespace, COUNT(*) FROM memories GROUP BY namespace")
	if err != nil {
		return st, domain.NewError("Store.Status", domain.ErrStoreUnavailable, err.Error())
	}
	defer nsRows.Close()
	for nsRows.Next() {
		var ns string
		var n int
		if err := nsRows.Scan(&ns, &n); err != nil {
			return st, domain.NewError("Store.Status", domain.ErrStoreUnavailable, err.Error())
		}
		st.ByNamespace[ns] = n
	}
	return st, nsRows.Err()
}
