// Package vectorutils constructs vector stores from configuration.
package vectorutils

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/vector"
	"github.com/quarrylabs/quarry/pkg/vector/qdrant"
	"github.com/quarrylabs/quarry/pkg/vector/sqlitevec"
)

type NewStoreOpts struct {
	// ProviderType selects the backend variant: "sqlite" or "qdrant".
	// The variant is chosen once at construction, never inferred at runtime.
	ProviderType string

	// Target is the data directory for sqlite, or host[:port] for qdrant.
	Target string

	Logger *zap.Logger
}

func NewStore(o *NewStoreOpts) (vector.Store, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlitevec.NewStore(sqlitevec.Config{
			DataDir: o.Target,
		}, o.Logger)
	case "qdrant":
		host, port, err := splitTarget(o.Target)
		if err != nil {
			return nil, err
		}
		return qdrant.NewStore(qdrant.Config{
			Host: host,
			Port: port,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

func splitTarget(target string) (string, int, error) {
	if !strings.Contains(target, ":") {
		return target, 0, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("parsing vector store target %q: %w", target, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parsing vector store port %q: %w", portStr, err)
	}

	return host, port, nil
}
