package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) EnsureUser(ctx context.Context, userID int64) (User, bool, error) {
	var user User
	var topicID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic_id, registration_date
		FROM users WHERE user_id=$1
	`, userID).Scan(&user.ID, &user.UserID, &topicID, &user.RegistrationDate)
	if err == nil {
		user.TopicID = topicID.Int64
		return user, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id=EXCLUDED.user_id
		RETURNING id, user_id, topic_id, registration_date
	`, userID).Scan(&user.ID, &user.UserID, &topicID, &user.RegistrationDate)
	if err != nil {
		return User{}, false, fmt.Errorf("insert user: %w", err)
	}
	user.TopicID = topicID.Int64
	return user, true, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic_id, registration_date
		FROM users WHERE user_id=$1
	`, userID), "get user")
}

func (s *PostgresStore) GetUserByTopic(ctx context.Context, topicID int64) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic_id, registration_date
		FROM users WHERE topic_id=$1
	`, topicID), "get user by topic")
}

func (s *PostgresStore) scanUser(row *sql.Row, op string) (User, error) {
	var user User
	var topicID sql.NullInt64
	err := row.Scan(&user.ID, &user.UserID, &topicID, &user.RegistrationDate)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	user.TopicID = topicID.Int64
	return user, nil
}

func (s *PostgresStore) SetUserTopic(ctx context.Context, userID, topicID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET topic_id=NULLIF($2, 0) WHERE user_id=$1
	`, userID, topicID)
	if err != nil {
		return fmt.Errorf("set user topic: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user topic rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, message string) (Note, error) {
	var note Note
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (message)
		VALUES ($1)
		RETURNING id, message, last_used_date
	`, message).Scan(&note.ID, &note.Message, &note.LastUsedDate)
	if err != nil {
		return Note{}, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, id int64) (Note, error) {
	var note Note
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message, last_used_date FROM notes WHERE id=$1
	`, id).Scan(&note.ID, &note.Message, &note.LastUsedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchNote(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notes SET last_used_date=NOW() WHERE id=$1
	`, id)
	if err != nil {
		return fmt.Errorf("touch note: %w", err)
	}
	return nil
}

func (s *PostgresStore) SearchNotes(ctx context.Context, query string, limit, offset int) ([]Note, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, last_used_date
		FROM notes
		WHERE ($1='' OR message ILIKE '%' || $1 || '%')
		ORDER BY last_used_date DESC
		LIMIT $2 OFFSET $3
	`, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.Message, &note.LastUsedDate); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, last_used_date FROM notes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.Message, &note.LastUsedDate); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreatePair(ctx context.Context, pair Pair) (Pair, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO message_pairs (user_id, user_message_id, group_message_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, pair.UserID, pair.UserMessageID, pair.GroupMessageID).Scan(&pair.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Pair{}, ErrConflict
		}
		return Pair{}, fmt.Errorf("create pair: %w", err)
	}
	return pair, nil
}

func (s *PostgresStore) PairByUserMessage(ctx context.Context, userMessageID int64) (Pair, error) {
	return s.scanPair(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_message_id, group_message_id
		FROM message_pairs WHERE user_message_id=$1
	`, userMessageID), "pair by user message")
}

func (s *PostgresStore) PairByGroupMessage(ctx context.Context, groupMessageID int64) (Pair, error) {
	return s.scanPair(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, user_message_id, group_message_id
		FROM message_pairs WHERE group_message_id=$1
	`, groupMessageID), "pair by group message")
}

func (s *PostgresStore) scanPair(row *sql.Row, op string) (Pair, error) {
	var pair Pair
	err := row.Scan(&pair.ID, &pair.UserID, &pair.UserMessageID, &pair.GroupMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return Pair{}, ErrNotFound
	}
	if err != nil {
		return Pair{}, fmt.Errorf("%s: %w", op, err)
	}
	return pair, nil
}

func (s *PostgresStore) DeletePair(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM message_pairs WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete pair: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
