package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/service-matching/internal/models"
)

type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(dsn string) (*PostgresLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresLog{db: db}, nil
}

func (p *PostgresLog) Append(ev models.EngagementEvent) error {
	_, err := p.db.Exec(`INSERT INTO engagement_events(job_id, seeker_id, responder_id, category, state, distance_km, total_amount, occurred_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		ev.JobID, ev.SeekerID, ev.ResponderID, ev.Category, string(ev.State), ev.DistanceKm, ev.TotalAmount, ev.At)
	return err
}

func (p *PostgresLog) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresLog) Close() error { return p.db.Close() }
