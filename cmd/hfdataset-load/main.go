// Command hfdataset-load fetches and prints a summary of a dataset
// repository using the hfdataset client, wired the same way a production
// fx application would: pflag for CLI flags, Viper for configuration,
// and fx.Invoke to drive the run.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/sgl-project/hfdatasets/pkg/configutils"
	"github.com/sgl-project/hfdatasets/pkg/hfdataset"
	"github.com/sgl-project/hfdatasets/pkg/logging"
)

func main() {
	flags := pflag.NewFlagSet("hfdataset-load", pflag.ExitOnError)
	repo := flags.String("repo", "", "remote repository id, e.g. owner/name (required unless --local is set)")
	local := flags.String("local", "", "local directory to load instead of a remote repository")
	revision := flags.String("revision", hfdataset.DefaultRevision, "remote revision to load")
	configName := flags.String("config-name", "", "only load files matching this dataset config")
	split := flags.String("split", "", "only load files matching this split")
	streaming := flags.Bool("streaming", false, "pull rows lazily instead of materializing every table")
	batchSize := flags.Int("batch-size", hfdataset.DefaultBatchSize, "rows per pull in streaming mode")
	numProc := flags.Int("num-proc", 1, "concurrent fetch/decode workers")
	configFile := flags.String("config-file", "", "optional Viper-compatible configuration file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *repo == "" && *local == "" {
		fmt.Fprintln(os.Stderr, "one of --repo or --local is required")
		os.Exit(2)
	}

	app := fx.New(
		fx.Provide(func() (*viper.Viper, error) { return newViper(*configFile) }),
		logging.Module,
		hfdataset.Module,
		fx.Invoke(func(lc fx.Lifecycle, client *hfdataset.Client, logger logging.Interface) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return run(ctx, client, logger, *repo, *local, *revision, *configName, *split, *streaming, *batchSize, *numProc)
				},
			})
		}),
		logging.UseLoggingInterface,
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = app.Stop(ctx)
}

// newViper builds a Viper instance bound to HFDATASET_-prefixed environment
// variables, optionally merged with a config file, mirroring the
// ProvideViperFromFile pattern in configutils but tolerating a missing file
// since this CLI can run purely off flags and the environment.
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("HFDATASET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		if err := configutils.ResolveAndMergeFile(v, configFile); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

func run(ctx context.Context, client *hfdataset.Client, logger logging.Interface, repo, local, revision, configName, split string, streaming bool, batchSize, numProc int) error {
	var handle hfdataset.Handle
	if local != "" {
		handle = hfdataset.NewLocal(local)
	} else {
		handle = hfdataset.NewRemote(repo, hfdataset.RemoteOptions{Revision: revision})
	}

	result, err := client.Load(ctx, handle, hfdataset.LoadOptions{
		ConfigName: configName,
		Split:      split,
		Streaming:  streaming,
		BatchSize:  batchSize,
		NumProc:    numProc,
	})
	if err != nil {
		logger.WithError(err).Error("load failed")
		return err
	}

	fmt.Printf("matched %d file(s)\n", len(result.Files))
	if result.Stream != nil {
		total := 0
		for {
			batch, hasMore, err := result.Stream.Next(ctx)
			if err != nil {
				return err
			}
			total += len(batch)
			if !hasMore {
				break
			}
		}
		fmt.Printf("streamed %d row(s)\n", total)
		return nil
	}
	for name, table := range result.Tables {
		fmt.Printf("%s: %d row(s)\n", name, len(table.Rows()))
	}
	return nil
}
