package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const sqliteDialect = "sqlite3"

//go:embed sql/*.sql
var embedded embed.FS

// zapLogger routes goose output through zap.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Printf(format string, v ...any) {
	l.sugar.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l zapLogger) Fatalf(format string, v ...any) {
	l.sugar.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func setup() error {
	goose.SetBaseFS(embedded)
	if err := goose.SetDialect(sqliteDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Up runs all pending embedded SQL migrations. A nil logger discards goose
// output.
func Up(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetLogger(zapLogger{sugar: logger.Sugar()})
	if err := setup(); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read goose version: %w", err)
	}
	return v, nil
}
