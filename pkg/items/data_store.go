package items

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ravi-parthasarathy/workbench/pkg/item"
	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// Pinger checks that a database URL is reachable.
type Pinger func(ctx context.Context, dbURL string) error

// PingPostgres connects with pgx and pings the server.
func PingPostgres(ctx context.Context, dbURL string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// DataStore exposes a database URL to items on both sides of it.
type DataStore struct {
	*item.Base

	URL string
	// Ping, when set, is called by the backward hook for postgres URLs.
	Ping        Pinger
	PingTimeout time.Duration
}

// NewDataStore returns a DataStore for dbURL.
func NewDataStore(name, dbURL string) *DataStore {
	return &DataStore{
		Base:        item.NewBase(name, TypeDataStore, item.CategoryData),
		URL:         dbURL,
		PingTimeout: 5 * time.Second,
	}
}

// NewDataStoreFromSpec builds a DataStore from the url and ping attributes.
func NewDataStoreFromSpec(s Spec) (*DataStore, error) {
	raw := s.Attrs["url"]
	if raw == "" {
		return nil, fmt.Errorf("data_store %q: missing 'url' attribute", s.Name)
	}
	if _, err := url.Parse(raw); err != nil {
		return nil, fmt.Errorf("data_store %q: invalid url: %w", s.Name, err)
	}
	ds := NewDataStore(s.Name, raw)
	if s.Bool("ping", false) {
		ds.Ping = PingPostgres
	}
	timeout, err := s.Duration("ping_timeout")
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		ds.PingTimeout = timeout
	}
	return ds, nil
}

// ExecuteBackward verifies the database is reachable before upstream items
// write to it.
func (ds *DataStore) ExecuteBackward(ctx context.Context, _ []resource.Resource) error {
	if ds.Ping == nil || !isPostgres(ds.URL) {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, ds.PingTimeout)
	defer cancel()
	if err := ds.Ping(pctx, ds.URL); err != nil {
		return fmt.Errorf("data_store %q: %w", ds.Name(), err)
	}
	slog.Debug("data store reachable", "item", ds.Name())
	return nil
}

// OutputResources advertises the database in both directions.
func (ds *DataStore) OutputResources(item.Direction) []resource.Resource {
	return []resource.Resource{resource.Database(ds.Name(), ds.URL)}
}

func isPostgres(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "postgres" || u.Scheme == "postgresql"
}
