package hfdataset

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/hfdatasets/pkg/logging"
)

// ClientParams are the fx-injected dependencies for a Client.
type ClientParams struct {
	fx.In

	Logger logging.Interface `name:"hfdataset_logger" optional:"true"`
}

// Client is a thin, stateful facade over Load/GetDatasetInfo for
// applications that wire their dependencies through fx instead of calling
// the package-level functions directly.
type Client struct {
	config *Config
}

// NewClient validates cfg and wraps it in a Client.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hfdataset config: %w", err)
	}
	return &Client{config: cfg}, nil
}

// Load delegates to the package-level Load using the Client's Config.
func (c *Client) Load(ctx context.Context, h Handle, opts LoadOptions) (*LoadResult, error) {
	return Load(ctx, c.config, h, opts)
}

// GetDatasetInfo delegates to the package-level GetDatasetInfo using the
// Client's Config.
func (c *Client) GetDatasetInfo(ctx context.Context, repositoryID string, opts InfoOptions) (map[string]interface{}, error) {
	return GetDatasetInfo(ctx, c.config, repositoryID, opts)
}

// Module provides the fx module for dependency injection, matching the
// shape of hub.Module: a *viper.Viper plus an optional named logger build
// a validated *Config, which in turn constructs the Client.
var Module = fx.Provide(
	func(v *viper.Viper, params ClientParams) (*Client, error) {
		cfg, err := NewConfig(
			WithViper(v),
			WithLogger(resolveLogger(params.Logger)),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating hfdataset config: %w", err)
		}
		return NewClient(cfg)
	},
)

func resolveLogger(l logging.Interface) logging.Interface {
	if l != nil {
		return l
	}
	return logging.Discard()
}
