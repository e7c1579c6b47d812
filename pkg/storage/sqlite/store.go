// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package sqlite implements storage.Store on SQLite. All operations are
// traced; the database runs in WAL mode for concurrent readers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// seqRetries bounds how often AppendTurn retries after losing a sequence
// race to a concurrent writer.
const seqRetries = 5

// Store is the SQLite-backed persistence layer.
type Store struct {
	db     *sql.DB
	tracer observability.Tracer

	// writeMu serializes in-process turn appends. The sequence allocation
	// inside insertTurn reads MAX(seq) before inserting; without this,
	// concurrent appenders deadlock on the SQLite lock upgrade instead of
	// reaching the unique-violation retry path. Cross-process writers are
	// still covered by the retry loop.
	writeMu sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at path and initializes the schema.
func New(path string, tracer observability.Tracer) (*Store, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL allows readers while the writer loop commits turns.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db, tracer: tracer}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	ctx, span := s.tracer.StartSpan(context.Background(), "store.init_schema")
	defer s.tracer.EndSpan(span)

	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		campaign_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		metadata_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- One conversation per campaign; unbound conversations are exempt.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_campaign
		ON conversations(campaign_id) WHERE campaign_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_conversations_owner
		ON conversations(owner, updated_at DESC);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		parts_json TEXT NOT NULL,
		metadata_json TEXT,
		seq INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (conversation_id, seq),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	ctx, span := s.tracer.StartSpan(ctx, "store.create_conversation")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, conv.ID)

	metadataJSON, err := marshalMetadata(conv.Metadata)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner, campaign_id, title, metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID,
		conv.Owner,
		nullableString(conv.CampaignID),
		conv.Title,
		metadataJSON,
		conv.CreatedAt.Unix(),
		conv.UpdatedAt.Unix(),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation or storage.ErrNotFound.
func (s *Store) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.get_conversation")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, id)

	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, campaign_id, title, metadata_json, created_at, updated_at
		FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}

// GetOrCreateByCampaign returns the single conversation bound to the
// campaign, creating it when absent. The partial unique index on
// campaign_id makes concurrent creates converge: the loser's INSERT OR
// IGNORE is a no-op and both callers read back the same row.
func (s *Store) GetOrCreateByCampaign(ctx context.Context, campaignID, owner string) (*types.Conversation, bool, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.get_or_create_by_campaign")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrCampaignID, campaignID)

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (id, owner, campaign_id, title, metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, '', NULL, ?, ?)`,
		types.NewConversationID(), owner, campaignID, now, now,
	)
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to bind conversation to campaign: %w", err)
	}
	inserted, _ := res.RowsAffected()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, campaign_id, title, metadata_json, created_at, updated_at
		FROM conversations WHERE campaign_id = ?`, campaignID)

	conv, err := scanConversation(row)
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to load campaign conversation: %w", err)
	}
	span.SetAttribute("created", fmt.Sprintf("%t", inserted == 1))
	return conv, inserted == 1, nil
}

// ListConversations returns the owner's conversations, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, owner string, limit int) ([]*types.Conversation, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.list_conversations")
	defer s.tracer.EndSpan(span)

	query := `
		SELECT id, owner, campaign_id, title, metadata_json, created_at, updated_at
		FROM conversations WHERE owner = ?
		ORDER BY updated_at DESC`
	args := []interface{}{owner}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// SetTitle sets the conversation title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	ctx, span := s.tracer.StartSpan(ctx, "store.set_title")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().Unix(), id,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MergeMetadata merges keys into the conversation's metadata.
func (s *Store) MergeMetadata(ctx context.Context, id string, meta map[string]string) error {
	ctx, span := s.tracer.StartSpan(ctx, "store.merge_metadata")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT metadata_json FROM conversations WHERE id = ?`, id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	merged := make(map[string]string)
	if current.Valid && current.String != "" {
		if err := json.Unmarshal([]byte(current.String), &merged); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	for k, v := range meta {
		merged[k] = v
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET metadata_json = ?, updated_at = ? WHERE id = ?`,
		string(mergedJSON), time.Now().Unix(), id,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update metadata: %w", err)
	}
	return tx.Commit()
}

// AppendTurn inserts the turn with the conversation's next sequence
// number. The number is assigned inside the insert transaction; a lost
// race surfaces as a unique violation and is retried with a fresh number.
func (s *Store) AppendTurn(ctx context.Context, turn *types.Turn) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.append_turn")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, turn.ConversationID)

	partsJSON, err := json.Marshal(turn.Parts)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to marshal parts: %w", err)
	}
	var metadataJSON interface{}
	if len(turn.Metadata) > 0 {
		b, err := json.Marshal(turn.Metadata)
		if err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	if turn.ID == "" {
		turn.ID = types.NewTurnID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var lastErr error
	for attempt := 0; attempt < seqRetries; attempt++ {
		seq, err := s.insertTurn(ctx, turn, string(partsJSON), metadataJSON)
		if err == nil {
			turn.Seq = seq
			span.SetAttribute(observability.AttrTurnSeq, fmt.Sprintf("%d", seq))
			return seq, nil
		}
		if !isUniqueViolation(err) {
			span.RecordError(err)
			return 0, err
		}
		lastErr = err
	}

	span.RecordError(lastErr)
	return 0, fmt.Errorf("failed to append turn after %d attempts: %w", seqRetries, lastErr)
}

func (s *Store) insertTurn(ctx context.Context, turn *types.Turn, partsJSON string, metadataJSON interface{}) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = ?`,
		turn.ConversationID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, parts_json, metadata_json, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.ConversationID, turn.Role, partsJSON, metadataJSON, seq, turn.CreatedAt.Unix(),
	); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		turn.CreatedAt.Unix(), turn.ConversationID,
	); err != nil {
		return 0, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

// ListTurns returns up to limit of the most recent turns in ascending
// sequence order. limit <= 0 returns all turns.
func (s *Store) ListTurns(ctx context.Context, conversationID string, limit int) ([]*types.Turn, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.list_turns")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrConversationID, conversationID)

	query := `
		SELECT id, conversation_id, role, parts_json, metadata_json, seq, created_at
		FROM turns WHERE conversation_id = ?
		ORDER BY seq ASC`
	args := []interface{}{conversationID}
	if limit > 0 {
		// Take the newest N, then restore ascending order.
		query = `
		SELECT id, conversation_id, role, parts_json, metadata_json, seq, created_at
		FROM (
			SELECT id, conversation_id, role, parts_json, metadata_json, seq, created_at
			FROM turns WHERE conversation_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var out []*types.Turn
	for rows.Next() {
		var (
			turn         types.Turn
			partsJSON    string
			metadataJSON sql.NullString
			createdAt    int64
		)
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Role, &partsJSON, &metadataJSON, &turn.Seq, &createdAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(partsJSON), &turn.Parts); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to unmarshal parts: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &turn.Metadata); err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		turn.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &turn)
	}
	return out, rows.Err()
}

// CountTurns returns the number of persisted turns.
func (s *Store) CountTurns(ctx context.Context, conversationID string) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.count_turns")
	defer s.tracer.EndSpan(span)

	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE conversation_id = ?`, conversationID,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

// InsertCampaign creates a campaign under a unique name.
func (s *Store) InsertCampaign(ctx context.Context, id, name string) error {
	ctx, span := s.tracer.StartSpan(ctx, "store.insert_campaign")
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrCampaignID, id)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateName
		}
		span.RecordError(err)
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

// GetCampaignName returns the campaign's name or storage.ErrNotFound.
func (s *Store) GetCampaignName(ctx context.Context, id string) (string, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.get_campaign_name")
	defer s.tracer.EndSpan(span)

	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM campaigns WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to load campaign: %w", err)
	}
	return name, nil
}

// PruneEmptyConversations deletes conversations with no turns last updated
// before the cutoff.
func (s *Store) PruneEmptyConversations(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.prune_empty_conversations")
	defer s.tracer.EndSpan(span)

	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE updated_at < ?
		  AND NOT EXISTS (SELECT 1 FROM turns WHERE turns.conversation_id = conversations.id)`,
		cutoff,
	)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	span.SetAttribute("pruned", fmt.Sprintf("%d", n))
	return n, nil
}

// ListActiveConversationIDs returns ids of conversations updated since the
// cutoff, most recently updated first.
func (s *Store) ListActiveConversationIDs(ctx context.Context, since time.Duration, limit int) ([]string, error) {
	ctx, span := s.tracer.StartSpan(ctx, "store.list_active_conversation_ids")
	defer s.tracer.EndSpan(span)

	if limit <= 0 {
		limit = 1000
	}
	cutoff := time.Now().Add(-since).Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM conversations
		WHERE updated_at >= ?
		ORDER BY updated_at DESC
		LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list active conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*types.Conversation, error) {
	var (
		conv         types.Conversation
		campaignID   sql.NullString
		metadataJSON sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&conv.ID, &conv.Owner, &campaignID, &conv.Title, &metadataJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if campaignID.Valid {
		conv.CampaignID = campaignID.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)
	return &conv, nil
}

func marshalMetadata(meta map[string]string) (interface{}, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
