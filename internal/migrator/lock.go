package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/pgschema/relmig/internal/command"
	"github.com/pgschema/relmig/internal/database"
	"github.com/pgschema/relmig/internal/sqlgen"
)

// lockKey derives the advisory lock identity from the history table, so
// runs against different history tables do not block each other.
func lockKey(schema, table string) uint64 {
	return xxh3.HashString(schema + "." + table)
}

func lockName(key uint64) string {
	return "relmig_" + strconv.FormatUint(key, 16)
}

// acquireLock takes a session-level advisory lock on conn and returns the
// function releasing it. SQLite serializes writers itself and takes no lock.
func acquireLock(ctx context.Context, conn *sql.Conn, helper sqlgen.Helper, key uint64) (func(context.Context) error, error) {
	b := command.NewBuilder(helper)
	release := command.NewBuilder(helper)

	switch helper.Dialect() {
	case sqlgen.Postgres:
		id := int64(key)
		b.Append("SELECT pg_advisory_lock(").Append(b.AddParameter("key", id)).Append(")")
		release.Append("SELECT pg_advisory_unlock(").Append(release.AddParameter("key", id)).Append(")")
		if _, err := b.Build().ExecuteNonQuery(ctx, conn); err != nil {
			return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
		}
	case sqlgen.MySQL:
		name := lockName(key)
		b.Append("SELECT GET_LOCK(").Append(b.AddParameter("name", name)).Append(", -1)")
		release.Append("SELECT RELEASE_LOCK(").Append(release.AddParameter("name", name)).Append(")")
		v, err := b.Build().ExecuteScalar(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !database.Truthy(v) {
			return nil, fmt.Errorf("failed to acquire migration lock %s", name)
		}
	case sqlgen.SQLServer:
		name := lockName(key)
		b.AppendLine("DECLARE @result int;").
			Append("EXEC @result = sp_getapplock @Resource = ").Append(b.AddParameter("resource", name)).
			AppendLine(", @LockMode = 'Exclusive', @LockOwner = 'Session', @LockTimeout = -1;").
			Append("SELECT @result;")
		release.Append("EXEC sp_releaseapplock @Resource = ").Append(release.AddParameter("resource", name)).
			Append(", @LockOwner = 'Session';")
		v, err := b.Build().ExecuteScalar(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if code, ok := v.(int64); ok && code < 0 {
			return nil, fmt.Errorf("failed to acquire migration lock %s: sp_getapplock returned %d", name, code)
		}
	default:
		return func(context.Context) error { return nil }, nil
	}

	unlock := release.Build()
	return func(ctx context.Context) error {
		if _, err := unlock.ExecuteNonQuery(ctx, conn); err != nil {
			return fmt.Errorf("failed to release migration lock: %w", err)
		}
		return nil
	}, nil
}
