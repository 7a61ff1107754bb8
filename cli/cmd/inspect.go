package cmd

import (
	"errors"
	"fmt"

	golode "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/scriptrun/cli/config"
	"github.com/pithecene-io/scriptrun/cli/reader"
	"github.com/pithecene-io/scriptrun/cli/render"
	"github.com/pithecene-io/scriptrun/lode"
)

// InspectCommand returns the inspect command. It shows one step result,
// read from a result file or looked up in the archive by build ID.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a step result",
		ArgsUsage: "[result-file]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to scriptrun.yaml",
				EnvVars: []string{"SCRIPTRUN_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Archive root (directory, or bucket/prefix for s3)",
			},
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "Archive dataset name",
			},
			&cli.StringFlag{
				Name:    "build-id",
				Usage:   "Look up the latest result of this build in the archive",
				EnvVars: []string{"SCRIPTRUN_BUILD_ID"},
			},
		}, ReadOnlyFlags()...),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	src := reader.Source{File: c.Args().First(), BuildID: c.String("build-id")}
	if src.File == "" {
		if src.BuildID == "" {
			return cli.Exit("result-file or --build-id required", exitError)
		}
		ds, err := openDataset(c)
		if err != nil {
			return cli.Exit(err.Error(), exitError)
		}
		src.Dataset = ds
	}

	result, err := reader.Load(c.Context, src)
	switch {
	case errors.Is(err, lode.ErrNoResultFound):
		return cli.Exit(fmt.Sprintf("no result for build %s", src.BuildID), exitFailure)
	case err != nil:
		return cli.Exit(err.Error(), exitError)
	}

	if c.Bool("tui") {
		return r.RenderTUI(result)
	}
	return r.Render(result)
}

// openDataset opens the archive named by flags over the config file.
func openDataset(c *cli.Context) (golode.Dataset, error) {
	var st config.StorageConfig
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		st = cfg.Storage
	}
	if c.IsSet("storage-path") {
		st.Path = c.String("storage-path")
	}
	if c.IsSet("dataset") {
		st.Dataset = c.String("dataset")
	}
	if st.Path == "" {
		return nil, errors.New("no archive: set --storage-path or storage.path")
	}
	if st.Dataset == "" {
		st.Dataset = lode.DefaultDataset
	}

	switch backendName(st) {
	case "fs":
		return lode.NewReadDatasetFS(st.Dataset, st.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(st.Path)
		return lode.NewReadDatasetS3(c.Context, st.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       st.Region,
			Endpoint:     st.Endpoint,
			UsePathStyle: st.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", st.Backend)
	}
}
