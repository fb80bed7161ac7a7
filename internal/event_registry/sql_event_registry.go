package event_registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/FlowPlatform/flow-connector/internal/domain"
	"github.com/FlowPlatform/flow-connector/internal/platform/logger"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var ErrConcurrentDeploy = errors.New("concurrent deploy for the same event definition")

// SqlEventDefinitionRegistry stores the definitions in postgres.  The
// active pointer swap happens inside a single transaction so a lookup
// never observes a half installed definition.
type SqlEventDefinitionRegistry struct {
	database                *sql.DB
	fallbackToDefaultTenant bool
}

func NewSqlEventDefinitionRegistry(database *sql.DB, fallbackToDefaultTenant bool) (*SqlEventDefinitionRegistry, error) {
	return &SqlEventDefinitionRegistry{
		database:                database,
		fallbackToDefaultTenant: fallbackToDefaultTenant,
	}, nil
}

func (r *SqlEventDefinitionRegistry) Deploy(ctx context.Context, def domain.EventDefinition) (domain.EventDefinition, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlDeployDuration)
	defer callDurationTimer.ObserveDuration()

	log := logger.Log.WithFields(logrus.Fields{"event_key": def.Key, "tenant": def.TenantID})

	correlationParams, err := json.Marshal(def.CorrelationParameters)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to marshal correlation parameters")
		return domain.EventDefinition{}, err
	}

	payloadFields, err := json.Marshal(def.PayloadFields)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to marshal payload fields")
		return domain.EventDefinition{}, err
	}

	tx, err := r.database.BeginTx(ctx, nil)
	if err != nil {
		return domain.EventDefinition{}, err
	}
	defer tx.Rollback()

	var latestVersion int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM event_definitions WHERE event_key = $1 AND tenant = $2",
		def.Key, def.TenantID).Scan(&latestVersion)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return domain.EventDefinition{}, err
	}

	def.Version = latestVersion + 1

	_, err = tx.ExecContext(ctx,
		"UPDATE event_definitions SET active = false WHERE event_key = $1 AND tenant = $2 AND active = true",
		def.Key, def.TenantID)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return domain.EventDefinition{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO event_definitions (event_key, tenant, version, correlation_parameters, payload_fields, active) VALUES ($1, $2, $3, $4, $5, true)",
		def.Key, def.TenantID, def.Version, correlationParams, payloadFields)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pgerrcode.UniqueViolation {
			// Deploys are supposed to be externally serialized per
			// (key, tenant) - surface the violation distinctly
			return domain.EventDefinition{}, ErrConcurrentDeploy
		}
		log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return domain.EventDefinition{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.EventDefinition{}, err
	}

	log.WithFields(logrus.Fields{"version": def.Version}).Info("Deployed an event definition")

	metrics.definitionDeployedCounter.Inc()

	return def, nil
}

func (r *SqlEventDefinitionRegistry) Retire(ctx context.Context, key domain.EventKey, tenant domain.TenantID) error {

	result, err := r.database.ExecContext(ctx,
		"UPDATE event_definitions SET active = false WHERE event_key = $1 AND tenant = $2 AND active = true",
		key, tenant)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrEventDefinitionNotFound
	}

	logger.Log.WithFields(logrus.Fields{"event_key": key, "tenant": tenant}).Info("Retired an event definition")

	return nil
}

func (r *SqlEventDefinitionRegistry) LookupDefinition(ctx context.Context, key domain.EventKey, tenant domain.TenantID) (domain.EventDefinition, error) {

	callDurationTimer := prometheus.NewTimer(metrics.sqlLookupDuration)
	defer callDurationTimer.ObserveDuration()

	def, err := r.lookupActive(ctx, key, tenant)
	if err == nil {
		return def, nil
	}
	if err != ErrEventDefinitionNotFound {
		return domain.EventDefinition{}, err
	}

	if r.fallbackToDefaultTenant && tenant != domain.NoTenant {
		def, err := r.lookupActive(ctx, key, domain.NoTenant)
		if err == nil {
			metrics.fallbackLookupCounter.Inc()
		}
		return def, err
	}

	return domain.EventDefinition{}, ErrEventDefinitionNotFound
}

func (r *SqlEventDefinitionRegistry) lookupActive(ctx context.Context, key domain.EventKey, tenant domain.TenantID) (domain.EventDefinition, error) {
	row := r.database.QueryRowContext(ctx,
		"SELECT event_key, tenant, version, correlation_parameters, payload_fields FROM event_definitions WHERE event_key = $1 AND tenant = $2 AND active = true",
		key, tenant)
	return scanDefinition(row)
}

func (r *SqlEventDefinitionRegistry) LookupDefinitionByVersion(ctx context.Context, key domain.EventKey, tenant domain.TenantID, version int) (domain.EventDefinition, error) {
	row := r.database.QueryRowContext(ctx,
		"SELECT event_key, tenant, version, correlation_parameters, payload_fields FROM event_definitions WHERE event_key = $1 AND tenant = $2 AND version = $3",
		key, tenant, version)
	return scanDefinition(row)
}

func scanDefinition(row *sql.Row) (domain.EventDefinition, error) {
	var def domain.EventDefinition
	var correlationParams, payloadFields []byte

	err := row.Scan(&def.Key, &def.TenantID, &def.Version, &correlationParams, &payloadFields)
	if err == sql.ErrNoRows {
		return domain.EventDefinition{}, ErrEventDefinitionNotFound
	}
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return domain.EventDefinition{}, err
	}

	if err := json.Unmarshal(correlationParams, &def.CorrelationParameters); err != nil {
		return domain.EventDefinition{}, err
	}
	if err := json.Unmarshal(payloadFields, &def.PayloadFields); err != nil {
		return domain.EventDefinition{}, err
	}

	return def, nil
}

func (r *SqlEventDefinitionRegistry) GetDefinitions(ctx context.Context, offset int, limit int) ([]domain.EventDefinition, int, error) {

	var total int
	err := r.database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM event_definitions WHERE active = true").Scan(&total)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return nil, 0, err
	}

	rows, err := r.database.QueryContext(ctx,
		"SELECT event_key, tenant, version, correlation_parameters, payload_fields FROM event_definitions WHERE active = true ORDER BY id OFFSET $1 LIMIT $2",
		offset, limit)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err}).Error("SQL query failed")
		return nil, 0, err
	}
	defer rows.Close()

	definitions := make([]domain.EventDefinition, 0)

	for rows.Next() {
		var def domain.EventDefinition
		var correlationParams, payloadFields []byte

		if err := rows.Scan(&def.Key, &def.TenantID, &def.Version, &correlationParams, &payloadFields); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(correlationParams, &def.CorrelationParameters); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(payloadFields, &def.PayloadFields); err != nil {
			return nil, 0, err
		}

		definitions = append(definitions, def)
	}

	return definitions, total, rows.Err()
}
