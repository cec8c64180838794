package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store executes Cypher against a Neo4j instance, one bounded read session
// per call. Row order is the store's own; no re-sorting happens here.
type Store struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
}

func New(uri, username, password string, timeout time.Duration) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{driver: driver, timeout: timeout}, nil
}

func (s *Store) VerifyConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return nil
}

// Run executes one query and collects every record as a field-to-value map.
// Store-level failures are returned to the caller; retry policy, if any,
// belongs there.
func (s *Store) Run(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("run cypher: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect cypher results: %w", err)
	}

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
