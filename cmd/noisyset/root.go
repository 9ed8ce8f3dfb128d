package main

import (
	"flag"
	"os"

	"github.com/Noofbiz/noisylabeln/config"
	"github.com/Noofbiz/noisylabeln/datasets"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// app is shared by the sub-commands. settings is loaded before any of them runs.
type app struct {
	v          *viper.Viper
	configPath string
	settings   *config.Settings
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "noisyset",
		Short:         "Inspect noisy label image datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(a.v, a.configPath)
			if err != nil {
				return err
			}
			a.settings = settings
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Configuration file (YAML). Defaults to ./noisyset.yaml if present.")
	flags.String("root", "", "Dataset root directory, with classes.txt, the manifests and the image directories.")
	flags.String("split", string(datasets.SplitTrain), "Split to load: train, val or test.")
	flags.Bool("cache", false, "Decode all images when loading the dataset.")
	flags.Bool("progress", true, "Show a progress bar while caching.")
	for key, name := range map[string]string{
		"dataset.root":          "root",
		"dataset.split":         "split",
		"dataset.use_cache":     "cache",
		"dataset.show_progress": "progress",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			klog.Fatalf("binding flag --%s: %+v", name, err)
		}
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	flags.AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(
		a.inspectCommand(),
		a.reportCommand(),
		a.getCommand(),
		a.batchCommand(),
	)
	return rootCmd
}

// bindFlag binds a sub-command flag to a configuration key.
func (a *app) bindFlag(cmd *cobra.Command, key, name string) {
	if err := a.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		klog.Fatalf("binding flag --%s: %+v", name, err)
	}
}

// openDataset builds the dataset from the loaded settings.
func (a *app) openDataset() (*datasets.NoisyLabelDataset, error) {
	opts, err := a.settings.DatasetOptions()
	if err != nil {
		return nil, err
	}
	opts.ProgressWriter = os.Stderr
	ds, err := datasets.NewNoisyLabelDataset(opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading %s split from %s", opts.Split, opts.Root)
	}
	return ds, nil
}
