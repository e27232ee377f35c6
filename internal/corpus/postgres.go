package corpus

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/postgres"
)

// PostgresStore keeps the corpus in the qa_records table, one row per
// record with a dense zero-based position.
type PostgresStore struct {
	db *postgres.Client
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]QARecord, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT question, answer FROM qa_records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	records := []QARecord{}
	for rows.Next() {
		var rec QARecord
		if err := rows.Scan(&rec.Question, &rec.Answer); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec QARecord) (int, error) {
	var position int
	err := s.db.DB.QueryRowContext(ctx,
		`INSERT INTO qa_records (position, question, answer)
		SELECT COALESCE(MAX(position) + 1, 0), $1, $2 FROM qa_records
		RETURNING position`, rec.Question, rec.Answer).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("appending record: %w", err)
	}
	return position, nil
}

func (s *PostgresStore) Update(ctx context.Context, index int, rec QARecord) error {
	result, err := s.db.DB.ExecContext(ctx,
		`UPDATE qa_records SET question = $1, answer = $2, updated_at = NOW()
		WHERE position = $3`, rec.Question, rec.Answer, index)
	if err != nil {
		return fmt.Errorf("updating record %d: %w", index, err)
	}
	return requireRow(result, index)
}

// Delete removes the record and closes the gap. Positions are shifted
// through negative values so the primary key never collides mid-update.
func (s *PostgresStore) Delete(ctx context.Context, index int) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM qa_records WHERE position = $1`, index)
		if err != nil {
			return fmt.Errorf("deleting record %d: %w", index, err)
		}
		if err := requireRow(result, index); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE qa_records SET position = -position WHERE position > $1`, index); err != nil {
			return fmt.Errorf("shifting positions: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE qa_records SET position = -position - 1 WHERE position < 0`); err != nil {
			return fmt.Errorf("shifting positions: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Replace(ctx context.Context, records []QARecord) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM qa_records`); err != nil {
			return fmt.Errorf("clearing records: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO qa_records (position, question, answer) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, rec := range records {
			if _, err := stmt.ExecContext(ctx, i, rec.Question, rec.Answer); err != nil {
				return fmt.Errorf("inserting record %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM qa_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func requireRow(result sql.Result, index int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound(index)
	}
	return nil
}
