// Package config loads the settings of the noisyset tool from a YAML file,
// NOISYSET_ environment variables and command line flags, via viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/noisylabeln/datasets"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read by Load, e.g.
// NOISYSET_DATASET_ROOT for dataset.root.
const EnvPrefix = "NOISYSET"

// Transform modes.
const (
	ModeNone   = "none"
	ModeResize = "resize"
	ModeCrop   = "crop"
	ModePad    = "pad"
)

// Settings is the full configuration.
type Settings struct {
	Dataset   DatasetSettings   `mapstructure:"dataset" yaml:"dataset"`
	Transform TransformSettings `mapstructure:"transform" yaml:"transform"`
	Report    ReportSettings    `mapstructure:"report" yaml:"report"`
}

// DatasetSettings maps to datasets.Options.
type DatasetSettings struct {
	Root         string   `mapstructure:"root" yaml:"root"`
	Split        string   `mapstructure:"split" yaml:"split"`
	UseCache     bool     `mapstructure:"use_cache" yaml:"use_cache"`
	ShowProgress bool     `mapstructure:"show_progress" yaml:"show_progress"`
	NumClasses   int      `mapstructure:"num_classes" yaml:"num_classes"`
	ClassFile    string   `mapstructure:"class_file" yaml:"class_file"`
	ImageExt     string   `mapstructure:"image_ext" yaml:"image_ext"`
	Extensions   []string `mapstructure:"extensions" yaml:"extensions"`
	Layouts      Layouts  `mapstructure:"layouts" yaml:"layouts"`
}

// Layouts overrides the manifest routing per split. Empty fields fall back to
// datasets.DefaultLayout.
type Layouts struct {
	Train datasets.Layout `mapstructure:"train" yaml:"train"`
	Val   datasets.Layout `mapstructure:"val" yaml:"val"`
	Test  datasets.Layout `mapstructure:"test" yaml:"test"`
}

// For returns the layout configured for split.
func (l Layouts) For(split datasets.Split) datasets.Layout {
	switch split {
	case datasets.SplitVal:
		return l.Val
	case datasets.SplitTest:
		return l.Test
	default:
		return l.Train
	}
}

// TransformSettings selects the image transform applied by Get.
type TransformSettings struct {
	Width  int    `mapstructure:"width" yaml:"width"`
	Height int    `mapstructure:"height" yaml:"height"`
	Mode   string `mapstructure:"mode" yaml:"mode"`
}

// ReportSettings configures the noise report.
type ReportSettings struct {
	PlotDir       string `mapstructure:"plot_dir" yaml:"plot_dir"`
	Format        string `mapstructure:"format" yaml:"format"`
	TopConfusions int    `mapstructure:"top_confusions" yaml:"top_confusions"`
}

// SetDefaults registers the default of every key on v. Every key needs a
// default so that environment variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset.root", "")
	v.SetDefault("dataset.split", string(datasets.SplitTrain))
	v.SetDefault("dataset.use_cache", false)
	v.SetDefault("dataset.show_progress", true)
	v.SetDefault("dataset.num_classes", datasets.DefaultNumClasses)
	v.SetDefault("dataset.class_file", datasets.DefaultClassFile)
	v.SetDefault("dataset.image_ext", datasets.DefaultImageExt)
	v.SetDefault("dataset.extensions", datasets.DefaultExtensions)
	for _, split := range []string{"train", "val", "test"} {
		for _, key := range []string{"noisy_manifest", "clean_manifest", "image_dir", "image_ext"} {
			v.SetDefault("dataset.layouts."+split+"."+key, "")
		}
	}

	v.SetDefault("transform.width", 224)
	v.SetDefault("transform.height", 224)
	v.SetDefault("transform.mode", ModeResize)

	v.SetDefault("report.plot_dir", "")
	v.SetDefault("report.format", "yaml")
	v.SetDefault("report.top_confusions", 10)
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file at path into v and returns the
// validated settings. With an empty path it looks for noisyset.yaml in the
// working directory and in ~/.config/noisyset, and a missing file is not an
// error.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	} else {
		v.SetConfigName("noisyset")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "noisyset"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "reading config file")
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Wrap(err, "decoding settings")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks the settings that can be checked without touching the
// dataset root.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Dataset.Root) == "" {
		return errors.Wrap(datasets.ErrConfiguration, "dataset.root is required")
	}
	if _, err := datasets.ParseSplit(s.Dataset.Split); err != nil {
		return err
	}
	if s.Dataset.NumClasses < 1 {
		return errors.Wrapf(datasets.ErrConfiguration, "dataset.num_classes must be >= 1, got %d", s.Dataset.NumClasses)
	}
	switch s.Transform.Mode {
	case "", ModeNone:
	case ModeResize, ModeCrop, ModePad:
		if s.Transform.Width < 1 || s.Transform.Height < 1 {
			return errors.Wrapf(datasets.ErrConfiguration, "transform %q needs a positive size, got %dx%d",
				s.Transform.Mode, s.Transform.Width, s.Transform.Height)
		}
	default:
		return errors.Wrapf(datasets.ErrConfiguration, "unknown transform.mode %q, expected one of %s",
			s.Transform.Mode, strings.Join([]string{ModeNone, ModeResize, ModeCrop, ModePad}, ", "))
	}
	switch strings.ToLower(s.Report.Format) {
	case "yaml", "yml", "json":
	default:
		return errors.Wrapf(datasets.ErrConfiguration, "unknown report.format %q, expected yaml or json", s.Report.Format)
	}
	if s.Report.TopConfusions < -1 {
		return errors.Wrapf(datasets.ErrConfiguration, "report.top_confusions must be >= -1, got %d", s.Report.TopConfusions)
	}
	return nil
}

// ImageTransform returns the transform selected by the transform settings,
// or nil for mode "none".
func (t TransformSettings) ImageTransform() datasets.Transform {
	switch t.Mode {
	case ModeResize:
		return datasets.Resize(t.Width, t.Height)
	case ModeCrop:
		return datasets.CenterCrop(t.Width, t.Height)
	case ModePad:
		return datasets.ResizeWithPadding(t.Width, t.Height)
	default:
		return nil
	}
}

// DatasetOptions converts the settings to datasets.Options. dataset.image_ext
// applies to every layout that doesn't set its own.
func (s *Settings) DatasetOptions() (datasets.Options, error) {
	split, err := datasets.ParseSplit(s.Dataset.Split)
	if err != nil {
		return datasets.Options{}, err
	}
	layout := s.Dataset.Layouts.For(split)
	if layout.ImageExt == "" {
		layout.ImageExt = s.Dataset.ImageExt
	}
	return datasets.Options{
		Root:         s.Dataset.Root,
		Split:        split,
		UseCache:     s.Dataset.UseCache,
		ShowProgress: s.Dataset.ShowProgress,
		Transform:    s.Transform.ImageTransform(),
		Extensions:   s.Dataset.Extensions,
		NumClasses:   s.Dataset.NumClasses,
		ClassFile:    s.Dataset.ClassFile,
		Layout:       layout,
	}, nil
}
