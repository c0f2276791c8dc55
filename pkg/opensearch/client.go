package opensearch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/texnika/texnika-backend/pkg/config"
	"github.com/texnika/texnika-backend/pkg/logger"
)

var errNoNodes = errors.New("opensearch node address is required")

// NewClient builds an OpenSearch API client from the search config. It does
// not contact the cluster.
func NewClient(ctx context.Context, cfg config.SearchConfig, logg *logger.Logger) (*opensearchapi.Client, error) {
	nodes := cfg.Nodes()
	if len(nodes) == 0 {
		return nil, errNoNodes
	}

	timeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local clusters use self-signed certs
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: nodes,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: transport,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating opensearch client: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"nodes": nodes, "index": cfg.Index}), "opensearch client initialized")
	}
	return client, nil
}
