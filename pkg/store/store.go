// Package store persists round history and the cross-team leaderboard
// in an embedded SQLite database. WAL mode gives each team's writer
// MVCC snapshot isolation; every round controller holds its own
// connection, never shared across goroutines.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/mixseek/mixseek/pkg/errkind"
)

const (
	writeAttempts     = 3
	writeBaseInterval = 100 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS round_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	team_name TEXT NOT NULL,
	round_number INTEGER NOT NULL,
	message_history TEXT NOT NULL,
	member_submissions_record TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(execution_id, team_id, round_number)
);
CREATE TABLE IF NOT EXISTS leader_board (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	team_name TEXT NOT NULL,
	round_number INTEGER NOT NULL,
	evaluation_score REAL NOT NULL,
	evaluation_feedback TEXT NOT NULL,
	submission_content TEXT NOT NULL,
	usage_info TEXT NOT NULL,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(execution_id, team_id, round_number)
);
CREATE INDEX IF NOT EXISTS idx_leader_board_execution ON leader_board(execution_id);
CREATE INDEX IF NOT EXISTS idx_round_history_team ON round_history(execution_id, team_id);
`

// Store owns the database handle. Open it once per process and hand a
// Session to each worker.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. The DSN enables WAL and a busy timeout so concurrent team
// writers back off inside SQLite instead of failing fast.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errkind.Wrap(errkind.StorePermanent, err, "store: open")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errkind.Wrap(errkind.StorePermanent, err, "store: apply schema")
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session returns a dedicated connection for one worker. Callers must
// Close it when the worker exits.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, classify(err, "store: acquire connection")
	}
	return &Session{conn: conn}, nil
}

// Session is a single worker's connection to the store. Not safe for
// concurrent use; each goroutine takes its own.
type Session struct {
	conn *sql.Conn
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// SaveRound appends the round's history row and leaderboard row in one
// transaction. Transient failures are retried with exponential backoff;
// constraint violations and cancelled contexts are not. A round whose
// write ultimately fails does not count, so there is never a partial
// row pair.
func (s *Session) SaveRound(ctx context.Context, rs *RoundState) error {
	if err := rs.Validate(); err != nil {
		return err
	}

	memberRecord, err := json.Marshal(rs.MemberSubmissions)
	if err != nil {
		return errkind.Wrap(errkind.StorePermanent, err, "store: marshal member submissions")
	}
	feedback, err := json.Marshal(rs.EvaluationFeedback)
	if err != nil {
		return errkind.Wrap(errkind.StorePermanent, err, "store: marshal feedback")
	}
	usageInfo, err := json.Marshal(rs.Usage)
	if err != nil {
		return errkind.Wrap(errkind.StorePermanent, err, "store: marshal usage")
	}

	op := func() error {
		err := s.saveRoundTx(ctx, rs, memberRecord, feedback, usageInfo)
		if err == nil {
			return nil
		}
		if errkind.Of(err) == errkind.StoreTransient && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = writeBaseInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, writeAttempts-1), ctx))
}

func (s *Session) saveRoundTx(ctx context.Context, rs *RoundState, memberRecord, feedback, usageInfo []byte) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "store: begin")
	}
	defer tx.Rollback()

	createdAt := rs.CompletedAt.UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO round_history
		 (execution_id, team_id, team_name, round_number, message_history, member_submissions_record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rs.ExecutionID, rs.TeamID, rs.TeamName, rs.RoundNumber,
		string(rs.MessageHistory), string(memberRecord), createdAt,
	); err != nil {
		return classify(err, "store: insert round_history")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO leader_board
		 (execution_id, team_id, team_name, round_number, evaluation_score, evaluation_feedback,
		  submission_content, usage_info, execution_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ExecutionID, rs.TeamID, rs.TeamName, rs.RoundNumber, rs.EvaluationScore,
		string(feedback), rs.SubmissionContent, string(usageInfo),
		rs.ExecutionTime.Milliseconds(), createdAt,
	); err != nil {
		return classify(err, "store: insert leader_board")
	}

	if err := tx.Commit(); err != nil {
		return classify(err, "store: commit")
	}
	return nil
}

// LoadRoundHistory reconstructs a team's persisted rounds in round
// order. Used for cold resume; live execution keeps history in memory.
func (s *Session) LoadRoundHistory(ctx context.Context, executionID, teamID string) ([]*RoundState, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT rh.round_number, rh.team_name, rh.message_history, rh.member_submissions_record,
		        lb.evaluation_score, lb.evaluation_feedback, lb.submission_content,
		        lb.usage_info, lb.execution_time_ms, rh.created_at
		 FROM round_history rh
		 JOIN leader_board lb
		   ON lb.execution_id = rh.execution_id
		  AND lb.team_id = rh.team_id
		  AND lb.round_number = rh.round_number
		 WHERE rh.execution_id = ? AND rh.team_id = ?
		 ORDER BY rh.round_number`,
		executionID, teamID)
	if err != nil {
		return nil, classify(err, "store: load round history")
	}
	defer rows.Close()

	var states []*RoundState
	for rows.Next() {
		rs := &RoundState{ExecutionID: executionID, TeamID: teamID}
		var history, memberRecord, feedback, usageInfo string
		var execMs int64
		if err := rows.Scan(&rs.RoundNumber, &rs.TeamName, &history, &memberRecord,
			&rs.EvaluationScore, &feedback, &rs.SubmissionContent,
			&usageInfo, &execMs, &rs.CompletedAt); err != nil {
			return nil, classify(err, "store: scan round")
		}
		rs.MessageHistory = json.RawMessage(history)
		if err := json.Unmarshal([]byte(memberRecord), &rs.MemberSubmissions); err != nil {
			return nil, errkind.Wrap(errkind.StorePermanent, err, "store: decode member submissions")
		}
		if err := json.Unmarshal([]byte(feedback), &rs.EvaluationFeedback); err != nil {
			return nil, errkind.Wrap(errkind.StorePermanent, err, "store: decode feedback")
		}
		if err := json.Unmarshal([]byte(usageInfo), &rs.Usage); err != nil {
			return nil, errkind.Wrap(errkind.StorePermanent, err, "store: decode usage")
		}
		rs.ExecutionTime = time.Duration(execMs) * time.Millisecond
		states = append(states, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "store: iterate rounds")
	}
	return states, nil
}

// LeaderboardRanking returns each team's best round, ordered best score
// first. Ties break toward the earlier round, then the lexicographically
// lower team_id.
func (s *Session) LeaderboardRanking(ctx context.Context, executionID string) ([]LeaderboardEntry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT team_id, team_name, round_number, evaluation_score, submission_content
		 FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY team_id
				ORDER BY evaluation_score DESC, round_number ASC
			) AS rn
			FROM leader_board
			WHERE execution_id = ?
		 )
		 WHERE rn = 1
		 ORDER BY evaluation_score DESC, round_number ASC, team_id ASC`,
		executionID)
	if err != nil {
		return nil, classify(err, "store: leaderboard ranking")
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		e := LeaderboardEntry{ExecutionID: executionID}
		var content string
		if err := rows.Scan(&e.TeamID, &e.TeamName, &e.RoundNumber, &e.Score, &content); err != nil {
			return nil, classify(err, "store: scan leaderboard")
		}
		e.SubmissionExcerpt = excerpt(content)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "store: iterate leaderboard")
	}
	return entries, nil
}

// excerpt truncates content to the leaderboard projection length.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return string(runes[:excerptRunes]) + "…"
}

// classify maps database errors onto the store error kinds. Lock and
// busy conditions are transient; constraint violations mean a
// programming bug and are never retried.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if ctxErr := errkindContext(err); ctxErr != nil {
		return ctxErr
	}
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "unique constraint"),
		strings.Contains(text, "constraint failed"):
		return errkind.Wrap(errkind.StorePermanent, err, msg)
	case strings.Contains(text, "locked"),
		strings.Contains(text, "busy"),
		strings.Contains(text, "interrupted"):
		return errkind.Wrap(errkind.StoreTransient, err, msg)
	default:
		return errkind.Wrap(errkind.StorePermanent, err, msg)
	}
}

// errkindContext passes context errors through untagged so they keep
// their Timeout/Cancelled classification.
func errkindContext(err error) error {
	switch errkind.Of(err) {
	case errkind.Timeout, errkind.Cancelled:
		return err
	}
	return nil
}

// RankingReader is the read-side capability the prompt builder needs
// for its leaderboard snapshot.
type RankingReader interface {
	LeaderboardRanking(ctx context.Context, executionID string) ([]LeaderboardEntry, error)
}

var _ RankingReader = (*Session)(nil)
