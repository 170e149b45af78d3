package collector

import (
	"github.com/altamira-asset/indexes-server/internal/config"
	"github.com/altamira-asset/indexes-server/internal/provider"
	quantumprovider "github.com/altamira-asset/indexes-server/internal/provider/quantum"
	"github.com/rs/zerolog"
)

// NewConnectors wires the closed set of known provider connectors. Adding a
// provider means adding a case here, not registering a plugin.
func NewConnectors(cfg config.ProviderConfig, bases quantumprovider.BaseSource, logger zerolog.Logger) provider.Set {
	quantumClient := quantumprovider.NewClient(quantumprovider.ClientConfig{
		BaseURL:        cfg.QuantumBaseURL,
		User:           cfg.QuantumUser,
		Password:       cfg.QuantumPassword,
		Timeout:        cfg.Timeout,
		RequestsPerMin: cfg.RequestsPerMin,
	}, logger)

	return provider.Set{
		provider.SourceQuantum: quantumprovider.New(quantumClient, bases, logger),
	}
}
