package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ts4z/knockout/dbnotify"
	"github.com/ts4z/knockout/dbutil"
	"github.com/ts4z/knockout/kerr"
	"github.com/ts4z/knockout/model"
)

// DBStorage keeps each competition as one JSON blob row.  The model knows
// how to serialize itself and the schema doesn't chase it; the only columns
// the database understands are the key and the optimistic lock.
type DBStorage struct {
	db *sql.DB
}

var _ CompetitionStorage = (*DBStorage)(nil)

func NewDBStorage(ctx context.Context, url string) (*DBStorage, error) {
	db, err := dbutil.Connect(url)
	if err != nil {
		return nil, err
	}
	return &DBStorage{db: db}, nil
}

func (s *DBStorage) Close() {
	s.db.Close()
}

func (s *DBStorage) CreateCompetition(ctx context.Context, c *model.Competition) error {
	bytes, err := json.Marshal(c)
	if err != nil {
		return err
	}

	tx, err := dbutil.NewTx(ctx, s.db, nil)
	if err != nil {
		return err
	}
	defer tx.MaybeRollback()

	_, err = tx.Exec(ctx,
		`INSERT INTO competitions (owner, competition_id, optimistic_lock, model_data) VALUES ($1, $2, 0, $3);`,
		string(c.Owner), c.ID, bytes)
	if err != nil {
		return fmt.Errorf("inserting competition %s: %w", c.Key(), err)
	}
	if err := notifyChanged(ctx, tx, c.Owner, c.ID, 0); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.Version = 0
	return nil
}

// notifyChanged announces a write on the change-feed channel, inside the
// same transaction as the write so nobody hears about a row that didn't
// commit.
func notifyChanged(ctx context.Context, tx *dbutil.Tx, owner model.Address, id string, version int64) error {
	payload, err := dbnotify.Payload(owner, id, version)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2);`, dbnotify.Channel, string(payload))
	return err
}

func (s *DBStorage) FetchCompetition(ctx context.Context, owner model.Address, id string) (*model.Competition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT optimistic_lock, model_data FROM competitions WHERE owner=$1 AND competition_id=$2;`,
		string(owner), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var c *model.Competition
	for rows.Next() {
		if c != nil {
			return nil, fmt.Errorf("can't happen: duplicate competition %s", model.Key(owner, id))
		}

		var lock int64
		var bytes []byte
		if err := rows.Scan(&lock, &bytes); err != nil {
			return nil, err
		}

		c = &model.Competition{}
		if err := json.Unmarshal(bytes, c); err != nil {
			return nil, err
		}

		// These come from the database row, not the JSON.
		c.Owner = owner
		c.ID = id
		c.Version = lock
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if c == nil {
		return nil, kerr.Lookupf("competition %s: %w", model.Key(owner, id), kerr.ErrUnknownCompetition)
	}
	return c, nil
}

func (s *DBStorage) SaveCompetition(ctx context.Context, c *model.Competition) error {
	bytes, err := json.Marshal(c)
	if err != nil {
		return err
	}
	tx, err := dbutil.NewTx(ctx, s.db, nil)
	if err != nil {
		return err
	}
	defer tx.MaybeRollback()

	result, err := tx.Exec(ctx,
		`UPDATE competitions SET optimistic_lock=$1+1, model_data=$2
		 WHERE owner=$3 AND competition_id=$4 AND optimistic_lock=$1;`,
		c.Version, bytes, string(c.Owner), c.ID)
	if err != nil {
		log.Printf("update of %s failed: %v", c.Key(), err)
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return fmt.Errorf("optimistic lock failure on %s, %d rows affected", c.Key(), n)
	}
	if err := notifyChanged(ctx, tx, c.Owner, c.ID, c.Version+1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (s *DBStorage) DeleteCompetition(ctx context.Context, owner model.Address, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM competitions WHERE owner=$1 AND competition_id=$2;`,
		string(owner), id)
	return err
}

func (s *DBStorage) FetchOverview(ctx context.Context, owner model.Address) ([]model.CompetitionSlug, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT competition_id, model_data FROM competitions WHERE owner=$1;`,
		string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []model.CompetitionSlug
	for rows.Next() {
		var id string
		var bytes []byte
		if err := rows.Scan(&id, &bytes); err != nil {
			log.Printf("row scan failed: %v", err)
			continue
		}
		c := model.Competition{}
		if err := json.Unmarshal(bytes, &c); err != nil {
			log.Printf("JSON unmarshal failed for %s: %v", id, err)
			continue
		}
		slugs = append(slugs, model.CompetitionSlug{
			Owner:   owner,
			ID:      id,
			Name:    c.Name,
			Variant: c.Variant,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return slugs, nil
}
