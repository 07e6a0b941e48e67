package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jet/jet/v2/qrm"
	. "github.com/go-jet/jet/v2/sqlite"

	"vpnproxy/internal/database/models/model"
	"vpnproxy/internal/database/models/table"
	"vpnproxy/internal/logger"
	"vpnproxy/pkg/scraper"
)

const proxyColumns = `id, host, port, proxy_type, country, status, status_code, response_time_ms, fail_count, first_seen_at, last_checked_at, last_healthy_at`

// Service handles database operations for proxies
type Service struct {
	db     *DB
	logger *logger.Logger
}

// NewService creates a new database service
func NewService(db *DB) *Service {
	return &Service{db: db, logger: logger.New("database")}
}

// UpsertProxy inserts a proxy or refreshes its metadata, keeping health data
func (s *Service) UpsertProxy(ctx context.Context, proxy scraper.Proxy) (*model.Proxies, error) {
	stmt := table.Proxies.INSERT(
		table.Proxies.Host,
		table.Proxies.Port,
		table.Proxies.ProxyType,
		table.Proxies.Country,
		table.Proxies.FirstSeenAt,
	).VALUES(
		proxy.Host,
		proxy.Port,
		proxy.Type,
		proxy.Country,
		String(formatTime(time.Now())),
	).ON_CONFLICT(table.Proxies.Host, table.Proxies.Port).DO_UPDATE(SET(
		table.Proxies.ProxyType.SET(table.Proxies.EXCLUDED.ProxyType),
		table.Proxies.Country.SET(table.Proxies.EXCLUDED.Country),
	)).RETURNING(table.Proxies.AllColumns)

	var result model.Proxies
	if err := stmt.QueryContext(ctx, s.db, &result); err != nil {
		return nil, fmt.Errorf("failed to upsert proxy: %w", err)
	}

	return &result, nil
}

func scanProxies(rows *sql.Rows) ([]model.Proxies, error) {
	var proxies []model.Proxies
	for rows.Next() {
		var p model.Proxies
		err := rows.Scan(
			&p.ID, &p.Host, &p.Port, &p.ProxyType, &p.Country,
			&p.Status, &p.StatusCode, &p.ResponseTimeMs, &p.FailCount,
			&p.FirstSeenAt, &p.LastCheckedAt, &p.LastHealthyAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}

// GetProxiesByAddresses returns existing proxies keyed by host:port
func (s *Service) GetProxiesByAddresses(ctx context.Context, addresses []string) (map[string]*model.Proxies, error) {
	result := make(map[string]*model.Proxies)
	if len(addresses) == 0 {
		return result, nil
	}

	args := make([]interface{}, len(addresses))
	placeholders := make([]string, len(addresses))
	for i, addr := range addresses {
		placeholders[i] = "?"
		args[i] = addr
	}
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE (host || ':' || port) IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get proxies by addresses: %w", err)
	}
	defer rows.Close()

	proxies, err := scanProxies(rows)
	if err != nil {
		return nil, err
	}

	for i := range proxies {
		p := &proxies[i]
		result[fmt.Sprintf("%s:%d", p.Host, p.Port)] = p
	}

	return result, nil
}

// BatchUpdateProxyHealth stores probe outcomes and their history in one transaction
func (s *Service) BatchUpdateProxyHealth(ctx context.Context, updates map[int32]HealthUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	healthyStmt, err := tx.PrepareContext(ctx, `
		UPDATE proxies
		SET status = ?, status_code = ?, last_checked_at = ?, response_time_ms = ?, last_healthy_at = ?, fail_count = 0
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare healthy statement: %w", err)
	}
	defer healthyStmt.Close()

	unhealthyStmt, err := tx.PrepareContext(ctx, `
		UPDATE proxies
		SET status = ?, status_code = ?, last_checked_at = ?, response_time_ms = ?, fail_count = fail_count + 1
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare unhealthy statement: %w", err)
	}
	defer unhealthyStmt.Close()

	history := table.ProxyChecks.INSERT(
		table.ProxyChecks.ProxyID,
		table.ProxyChecks.Status,
		table.ProxyChecks.StatusCode,
		table.ProxyChecks.ResponseTimeMs,
		table.ProxyChecks.ErrorMessage,
		table.ProxyChecks.CheckedAt,
	)

	for proxyID, update := range updates {
		checkedAt := formatTime(update.CheckedAt)
		responseMs := int32(update.ResponseTime.Milliseconds())
		statusCode := sql.NullInt32{Int32: int32(update.StatusCode), Valid: update.StatusCode != 0}

		if update.Healthy() {
			_, err = healthyStmt.ExecContext(ctx, update.Status, statusCode, checkedAt, responseMs, checkedAt, proxyID)
		} else {
			_, err = unhealthyStmt.ExecContext(ctx, update.Status, statusCode, checkedAt, responseMs, proxyID)
		}
		if err != nil {
			return fmt.Errorf("failed to update proxy %d: %w", proxyID, err)
		}

		errMessage := ""
		if update.Error != nil {
			errMessage = update.Error.Error()
		}
		history = history.VALUES(proxyID, update.Status, update.StatusCode, responseMs, errMessage, String(checkedAt))
	}

	if _, err := history.ExecContext(ctx, tx); err != nil {
		return fmt.Errorf("failed to record check history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugBg("Batch updated %d proxy health records", len(updates))
	return nil
}

// GetHealthyProxies returns all healthy proxies, most recently healthy first
func (s *Service) GetHealthyProxies(ctx context.Context) ([]model.Proxies, error) {
	stmt := SELECT(
		table.Proxies.AllColumns,
	).FROM(
		table.Proxies,
	).WHERE(
		table.Proxies.Status.EQ(String(statusHealthy)),
	).ORDER_BY(
		table.Proxies.LastHealthyAt.DESC(),
	)

	var proxies []model.Proxies
	if err := stmt.QueryContext(ctx, s.db, &proxies); err != nil {
		return nil, fmt.Errorf("failed to get healthy proxies: %w", err)
	}

	return proxies, nil
}

// GetProxyByHostPort finds a proxy by host and port, nil when absent
func (s *Service) GetProxyByHostPort(ctx context.Context, host string, port int) (*model.Proxies, error) {
	stmt := SELECT(
		table.Proxies.AllColumns,
	).FROM(
		table.Proxies,
	).WHERE(
		table.Proxies.Host.EQ(String(host)).
			AND(table.Proxies.Port.EQ(Int32(int32(port)))),
	)

	var proxy model.Proxies
	if err := stmt.QueryContext(ctx, s.db, &proxy); err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proxy: %w", err)
	}

	return &proxy, nil
}

// GetCheckHistory returns the most recent probes of one proxy, newest first
func (s *Service) GetCheckHistory(ctx context.Context, proxyID int32, limit int64) ([]model.ProxyChecks, error) {
	stmt := SELECT(
		table.ProxyChecks.AllColumns,
	).FROM(
		table.ProxyChecks,
	).WHERE(
		table.ProxyChecks.ProxyID.EQ(Int32(proxyID)),
	).ORDER_BY(
		table.ProxyChecks.ID.DESC(),
	).LIMIT(limit)

	var checks []model.ProxyChecks
	if err := stmt.QueryContext(ctx, s.db, &checks); err != nil {
		return nil, fmt.Errorf("failed to get check history: %w", err)
	}
	return checks, nil
}

// CleanupOldProxies removes proxies that haven't been healthy within maxAge
func (s *Service) CleanupOldProxies(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM proxies WHERE first_seen_at < ? AND (last_healthy_at IS NULL OR last_healthy_at < ?)`,
		cutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old proxies: %w", err)
	}

	removed, _ := res.RowsAffected()
	return removed, nil
}

// GetProxyStats returns statistics about the proxy database
func (s *Service) GetProxyStats(ctx context.Context) (ProxyStats, error) {
	stats := ProxyStats{
		ByType:    make(map[string]int),
		ByStatus:  make(map[string]int),
		ByCountry: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM proxies").Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("failed to count total proxies: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"proxy_type", stats.ByType},
		{"status", stats.ByStatus},
		{"COALESCE(country, '')", stats.ByCountry},
	}
	for _, g := range groups {
		if err := s.countBy(ctx, g.column, g.into); err != nil {
			return stats, err
		}
	}
	delete(stats.ByCountry, "")

	stats.Healthy = stats.ByStatus[statusHealthy]
	return stats, nil
}

func (s *Service) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM proxies GROUP BY 1")
	if err != nil {
		return fmt.Errorf("failed to group proxies by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}
