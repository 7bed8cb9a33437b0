package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/evaluator"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/runner"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

const defaultHistoryLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertTestStmt       *sql.Stmt
	getTestStmt          *sql.Stmt
	insertRunStmt        *sql.Stmt
	getRunStmt           *sql.Stmt
	insertEvaluationStmt *sql.Stmt
	evaluationsByRunStmt *sql.Stmt
	historyStmt          *sql.Stmt
	runsByVersionStmt    *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS tests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			api TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			prompt_name TEXT NOT NULL DEFAULT '',
			prompt_version TEXT NOT NULL DEFAULT '',
			assistant_id TEXT NOT NULL DEFAULT '',
			dataset TEXT NOT NULL DEFAULT '',
			evaluators_json TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS test_runs (
			id TEXT PRIMARY KEY,
			test_id TEXT NOT NULL,
			row_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			passed_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			output_json TEXT,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			FOREIGN KEY(test_id) REFERENCES tests(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			test_run_id TEXT NOT NULL,
			evaluator_key TEXT NOT NULL,
			score REAL NOT NULL,
			score_min REAL NOT NULL,
			score_max REAL NOT NULL,
			passed INTEGER,
			feedback TEXT NOT NULL DEFAULT '',
			metadata_json TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(test_run_id) REFERENCES test_runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tests_name_version ON tests(name, prompt_version)`,
		`CREATE INDEX IF NOT EXISTS idx_test_runs_test_id ON test_runs(test_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_test_runs_started_at ON test_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_run_id ON evaluations(test_run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

const testRunColumns = `id, test_id, row_id, status, passed_count, failed_count, total_count,
	error_message, output_json, latency_ms, started_at, finished_at`

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertTestStmt,
			query: `
				INSERT INTO tests (
					id, name, description, mode, provider, api, model, prompt_name,
					prompt_version, assistant_id, dataset, evaluators_json, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					description = excluded.description,
					mode = excluded.mode,
					provider = excluded.provider,
					api = excluded.api,
					model = excluded.model,
					prompt_name = excluded.prompt_name,
					prompt_version = excluded.prompt_version,
					assistant_id = excluded.assistant_id,
					dataset = excluded.dataset,
					evaluators_json = excluded.evaluators_json,
					updated_at = excluded.updated_at
			`,
			errFmt: "store: prepare insert test: %w",
		},
		{
			dst: &s.getTestStmt,
			query: `
				SELECT id, name, description, mode, provider, api, model, prompt_name,
					prompt_version, assistant_id, dataset, evaluators_json, created_at, updated_at
				FROM tests WHERE id = ?
			`,
			errFmt: "store: prepare get test: %w",
		},
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO test_runs (` + testRunColumns + `
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT ` + testRunColumns + `
				FROM test_runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.insertEvaluationStmt,
			query: `
				INSERT INTO evaluations (
					id, test_run_id, evaluator_key, score, score_min, score_max,
					passed, feedback, metadata_json, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert evaluation: %w",
		},
		{
			dst: &s.evaluationsByRunStmt,
			query: `
				SELECT id, test_run_id, evaluator_key, score, score_min, score_max,
					passed, feedback, metadata_json, created_at
				FROM evaluations
				WHERE test_run_id = ?
				ORDER BY created_at ASC, id ASC
			`,
			errFmt: "store: prepare get evaluations: %w",
		},
		{
			dst: &s.historyStmt,
			query: `
				SELECT ` + testRunColumns + `
				FROM test_runs
				WHERE test_id = ?
				ORDER BY started_at DESC, id DESC
				LIMIT ?
			`,
			errFmt: "store: prepare run history: %w",
		},
		{
			dst: &s.runsByVersionStmt,
			query: `
				SELECT tr.id, tr.test_id, tr.row_id, tr.status, tr.passed_count, tr.failed_count,
					tr.total_count, tr.error_message, tr.output_json, tr.latency_ms, tr.started_at, tr.finished_at
				FROM test_runs tr
				JOIN tests t ON t.id = tr.test_id
				WHERE t.name = ? AND t.prompt_version = ?
				ORDER BY tr.started_at ASC, tr.id ASC
			`,
			errFmt: "store: prepare runs by version: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertTestStmt,
		s.getTestStmt,
		s.insertRunStmt,
		s.getRunStmt,
		s.insertEvaluationStmt,
		s.evaluationsByRunStmt,
		s.historyStmt,
		s.runsByVersionStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveTest upserts a test definition. The first save fixes created_at;
// later saves only touch the mutable columns.
func (s *SQLiteStore) SaveTest(ctx context.Context, t *testdef.Test) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if t == nil {
		return errors.New("store: nil test")
	}

	id := strings.TrimSpace(t.ID)
	if id == "" {
		return errors.New("store: empty test id")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("store: empty test name")
	}

	evalJSON, err := json.Marshal(t.Evaluators)
	if err != nil {
		return fmt.Errorf("store: marshal evaluators: %w", err)
	}

	now := time.Now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin test tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertTestStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		t.Name,
		t.Description,
		string(t.Mode),
		t.Testable.Provider,
		string(t.Testable.APIType()),
		t.Testable.Model,
		t.Testable.PromptName,
		t.Testable.PromptVersion,
		t.Testable.AssistantID,
		t.Dataset,
		string(evalJSON),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("store: insert test: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit test: %w", err)
	}
	return nil
}

// SaveTestRun persists one run row. Its evaluations are saved
// separately through SaveEvaluations.
func (s *SQLiteStore) SaveTestRun(ctx context.Context, run *runner.TestRun) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	if strings.TrimSpace(run.TestID) == "" {
		return errors.New("store: empty test id")
	}
	if run.Status == "" {
		return errors.New("store: empty run status")
	}
	if run.StartedAt.IsZero() {
		return errors.New("store: missing run start time")
	}

	outputJSON := []byte("null")
	if run.Output != nil {
		var err error
		outputJSON, err = json.Marshal(run.Output)
		if err != nil {
			return fmt.Errorf("store: marshal run output: %w", err)
		}
	}

	finishedAt := int64(0)
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt.UTC().UnixMilli()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		run.TestID,
		run.RowID,
		string(run.Status),
		run.PassedCount,
		run.FailedCount,
		run.TotalCount,
		run.ErrorMessage,
		string(outputJSON),
		run.LatencyMs,
		run.StartedAt.UTC().UnixMilli(),
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// SaveEvaluations persists evaluation records in one transaction.
func (s *SQLiteStore) SaveEvaluations(ctx context.Context, evals []evaluator.Evaluation) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if len(evals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin evaluations tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertEvaluationStmt)
	defer stmt.Close()

	for _, ev := range evals {
		if strings.TrimSpace(ev.ID) == "" {
			return errors.New("store: empty evaluation id")
		}
		if strings.TrimSpace(ev.TestRunID) == "" {
			return fmt.Errorf("store: evaluation %s: empty run id", ev.ID)
		}

		metaJSON := []byte("null")
		if ev.Metadata != nil {
			metaJSON, err = json.Marshal(ev.Metadata)
			if err != nil {
				return fmt.Errorf("store: marshal evaluation metadata: %w", err)
			}
		}

		var passed sql.NullBool
		if ev.Passed != nil {
			passed = sql.NullBool{Bool: *ev.Passed, Valid: true}
		}

		createdAt := ev.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err = stmt.ExecContext(
			ctx,
			ev.ID,
			ev.TestRunID,
			ev.EvaluatorKey,
			ev.Score,
			ev.ScoreMin,
			ev.ScoreMax,
			passed,
			ev.Feedback,
			string(metaJSON),
			createdAt.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("store: insert evaluation %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit evaluations: %w", err)
	}
	return nil
}

// GetTest loads a test record by id.
func (s *SQLiteStore) GetTest(ctx context.Context, id string) (*TestRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty test id")
	}

	return scanTestRow(s.getTestStmt.QueryRowContext(ctx, id))
}

// ListTests returns all stored test records ordered by name.
func (s *SQLiteStore) ListTests(ctx context.Context) ([]*TestRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, mode, provider, api, model, prompt_name,
			prompt_version, assistant_id, dataset, evaluators_json, created_at, updated_at
		FROM tests
		ORDER BY name ASC, prompt_version ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list tests: %w", err)
	}
	defer rows.Close()

	var out []*TestRecord
	for rows.Next() {
		rec, err := scanTestRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list tests: %w", err)
	}
	return out, nil
}

// GetTestRun loads a run by id, without its evaluations.
func (s *SQLiteStore) GetTestRun(ctx context.Context, id string) (*runner.TestRun, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	run, err := scanTestRun(s.getRunStmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return run, nil
}

// ListTestRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListTestRuns(ctx context.Context, filter RunFilter) ([]*runner.TestRun, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + testRunColumns + ` FROM test_runs WHERE 1=1`)

	var args []any
	if testID := strings.TrimSpace(filter.TestID); testID != "" {
		sb.WriteString(` AND test_id = ?`)
		args = append(args, testID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		sb.WriteString(` AND status = ?`)
		args = append(args, status)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY started_at DESC, id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()
	return scanTestRunRows(rows)
}

// GetEvaluations lists the evaluations of a run in creation order.
func (s *SQLiteStore) GetEvaluations(ctx context.Context, runID string) ([]evaluator.Evaluation, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.evaluationsByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get evaluations: %w", err)
	}
	defer rows.Close()

	var out []evaluator.Evaluation
	for rows.Next() {
		var (
			ev          evaluator.Evaluation
			passed      sql.NullBool
			metaJSON    sql.NullString
			createdAtMS int64
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.TestRunID,
			&ev.EvaluatorKey,
			&ev.Score,
			&ev.ScoreMin,
			&ev.ScoreMax,
			&passed,
			&ev.Feedback,
			&metaJSON,
			&createdAtMS,
		); err != nil {
			return nil, fmt.Errorf("store: scan evaluation: %w", err)
		}

		if passed.Valid {
			v := passed.Bool
			ev.Passed = &v
		}
		meta, err := decodeJSONMap(metaJSON)
		if err != nil {
			return nil, fmt.Errorf("store: decode evaluation metadata: %w", err)
		}
		ev.Metadata = meta
		ev.CreatedAt = time.UnixMilli(createdAtMS).UTC()

		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get evaluations: %w", err)
	}
	return out, nil
}

// TestRunHistory returns the most recent runs of a test.
func (s *SQLiteStore) TestRunHistory(ctx context.Context, testID string, limit int) ([]*runner.TestRun, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	testID = strings.TrimSpace(testID)
	if testID == "" {
		return nil, errors.New("store: empty test id")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.historyStmt.QueryContext(ctx, testID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: run history: %w", err)
	}
	defer rows.Close()
	return scanTestRunRows(rows)
}

// CompareVersions pits the latest run per dataset row of two prompt
// versions of the same test name against each other.
func (s *SQLiteStore) CompareVersions(ctx context.Context, testName, v1, v2 string) (*VersionComparison, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	testName = strings.TrimSpace(testName)
	v1 = strings.TrimSpace(v1)
	v2 = strings.TrimSpace(v2)
	if testName == "" || v1 == "" || v2 == "" {
		return nil, errors.New("store: missing test name/version")
	}

	latest1, err := s.latestRunsByRow(ctx, testName, v1)
	if err != nil {
		return nil, err
	}
	latest2, err := s.latestRunsByRow(ctx, testName, v2)
	if err != nil {
		return nil, err
	}

	regressions, improvements := compareRowOutcomes(latest1, latest2)

	return &VersionComparison{
		TestName:     testName,
		V1:           v1,
		V2:           v2,
		V1Runs:       sortRunsByRow(latest1),
		V2Runs:       sortRunsByRow(latest2),
		Regressions:  regressions,
		Improvements: improvements,
	}, nil
}

// latestRunsByRow keeps the newest run per dataset row for one test
// name and prompt version. The query orders ascending, so later rows
// overwrite earlier ones.
func (s *SQLiteStore) latestRunsByRow(ctx context.Context, testName, version string) (map[string]*runner.TestRun, error) {
	rows, err := s.runsByVersionStmt.QueryContext(ctx, testName, version)
	if err != nil {
		return nil, fmt.Errorf("store: runs by version: %w", err)
	}
	defer rows.Close()

	runs, err := scanTestRunRows(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("store: no runs for test %q version %q", testName, version)
	}

	latest := make(map[string]*runner.TestRun, len(runs))
	for _, run := range runs {
		latest[run.RowID] = run
	}
	return latest, nil
}

func scanTestRun(row *sql.Row) (*runner.TestRun, error) {
	var (
		run         runner.TestRun
		status      string
		outputJSON  sql.NullString
		startedAtMS int64
		finishedMS  int64
	)
	if err := row.Scan(
		&run.ID,
		&run.TestID,
		&run.RowID,
		&status,
		&run.PassedCount,
		&run.FailedCount,
		&run.TotalCount,
		&run.ErrorMessage,
		&outputJSON,
		&run.LatencyMs,
		&startedAtMS,
		&finishedMS,
	); err != nil {
		return nil, err
	}
	return finishTestRunScan(&run, status, outputJSON, startedAtMS, finishedMS)
}

func scanTestRunRows(rows *sql.Rows) ([]*runner.TestRun, error) {
	var out []*runner.TestRun
	for rows.Next() {
		var (
			run         runner.TestRun
			status      string
			outputJSON  sql.NullString
			startedAtMS int64
			finishedMS  int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.TestID,
			&run.RowID,
			&status,
			&run.PassedCount,
			&run.FailedCount,
			&run.TotalCount,
			&run.ErrorMessage,
			&outputJSON,
			&run.LatencyMs,
			&startedAtMS,
			&finishedMS,
		); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r, err := finishTestRunScan(&run, status, outputJSON, startedAtMS, finishedMS)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan run rows: %w", err)
	}
	return out, nil
}

func finishTestRunScan(run *runner.TestRun, status string, outputJSON sql.NullString, startedAtMS, finishedMS int64) (*runner.TestRun, error) {
	run.Status = runner.Status(status)
	run.StartedAt = time.UnixMilli(startedAtMS).UTC()
	if finishedMS > 0 {
		run.FinishedAt = time.UnixMilli(finishedMS).UTC()
	}

	output, err := decodeJSONValue(outputJSON)
	if err != nil {
		return nil, fmt.Errorf("store: decode run output: %w", err)
	}
	run.Output = output
	return run, nil
}

func scanTestRow(row interface{ Scan(dest ...any) error }) (*TestRecord, error) {
	var (
		rec         TestRecord
		mode        string
		evalJSON    string
		createdAtMS int64
		updatedAtMS int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Description,
		&mode,
		&rec.Provider,
		&rec.API,
		&rec.Model,
		&rec.PromptName,
		&rec.PromptVersion,
		&rec.AssistantID,
		&rec.Dataset,
		&evalJSON,
		&createdAtMS,
		&updatedAtMS,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan test: %w", err)
	}

	rec.Mode = mode
	rec.CreatedAt = time.UnixMilli(createdAtMS).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAtMS).UTC()

	if strings.TrimSpace(evalJSON) != "" && evalJSON != "null" {
		if err := json.Unmarshal([]byte(evalJSON), &rec.Evaluators); err != nil {
			return nil, fmt.Errorf("store: decode evaluators: %w", err)
		}
	}
	return &rec, nil
}

func decodeJSONValue(v sql.NullString) (any, error) {
	if !v.Valid {
		return nil, nil
	}
	raw := strings.TrimSpace(v.String)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeJSONMap(v sql.NullString) (map[string]any, error) {
	if !v.Valid {
		return nil, nil
	}
	raw := strings.TrimSpace(v.String)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compareRowOutcomes(v1, v2 map[string]*runner.TestRun) ([]string, []string) {
	var regressions []string
	var improvements []string
	for rowID, run1 := range v1 {
		run2, ok := v2[rowID]
		if !ok {
			continue
		}
		passed1 := run1.Status == runner.StatusPassed
		passed2 := run2.Status == runner.StatusPassed
		if passed1 && !passed2 {
			regressions = append(regressions, rowID)
		}
		if !passed1 && passed2 {
			improvements = append(improvements, rowID)
		}
	}

	sort.Strings(regressions)
	sort.Strings(improvements)
	return regressions, improvements
}

func sortRunsByRow(m map[string]*runner.TestRun) []*runner.TestRun {
	out := make([]*runner.TestRun, 0, len(m))
	for _, run := range m {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out
}
