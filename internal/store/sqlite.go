package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/askchat/askchat-ai-backend/pkg/utils"
)

// SQLiteStore is a durable vector store backed by SQLite. Vectors are stored
// as little-endian float32 blobs; similarity queries scan the collection and
// rank in process, which is fine for the chat-history scale this serves.
type SQLiteStore struct {
	db         *sql.DB
	collection string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist. Records
// are scoped to the given collection name.
func NewSQLiteStore(dbPath, collection string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, collection: collection}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT NOT NULL,
		collection TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		sender_id TEXT,
		timestamp INTEGER,
		is_chunk INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		orig_length INTEGER NOT NULL,
		document TEXT NOT NULL,
		vector BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
	CREATE INDEX IF NOT EXISTS idx_records_message ON records(collection, chat_id, message_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert writes records, overwriting by (collection, id).
func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
			(id, collection, chat_id, message_id, sender_id, timestamp,
			 is_chunk, chunk_index, total_chunks, orig_length, document, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			chat_id=excluded.chat_id, message_id=excluded.message_id,
			sender_id=excluded.sender_id, timestamp=excluded.timestamp,
			is_chunk=excluded.is_chunk, chunk_index=excluded.chunk_index,
			total_chunks=excluded.total_chunks, orig_length=excluded.orig_length,
			document=excluded.document, vector=excluded.vector, updated_at=excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.ID, s.collection, rec.Meta.ChatID, rec.Meta.MessageID,
			rec.Meta.SenderID, rec.Meta.Timestamp, rec.Meta.IsChunk,
			rec.Meta.ChunkIndex, rec.Meta.TotalChunks, rec.Meta.OrigLength,
			rec.Document, float32SliceToBytes(rec.Vector), now,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// QuerySimilar scans the collection, computes cosine distances in process,
// and returns up to n hits ascending by distance. Equal distances keep
// rowid (insertion) order.
func (s *SQLiteStore) QuerySimilar(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, message_id, sender_id, timestamp,
		       is_chunk, chunk_index, total_chunks, orig_length, document, vector
		FROM records WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var senderID sql.NullString
		var timestamp sql.NullInt64
		var blob []byte
		if err := rows.Scan(&h.ID, &h.Meta.ChatID, &h.Meta.MessageID, &senderID, &timestamp,
			&h.Meta.IsChunk, &h.Meta.ChunkIndex, &h.Meta.TotalChunks, &h.Meta.OrigLength,
			&h.Document, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		h.Meta.SenderID = senderID.String
		h.Meta.Timestamp = timestamp.Int64
		h.Distance = utils.CosineDistance(vector, bytesToFloat32Slice(blob))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if n > len(hits) {
		n = len(hits)
	}
	return hits[:n], nil
}

// Count returns the number of records in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, s.collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
