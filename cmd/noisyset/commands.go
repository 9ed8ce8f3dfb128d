package main

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/Noofbiz/noisylabeln/datasets"
	"github.com/Noofbiz/noisylabeln/noise"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the sample counts of each label category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.openDataset()
			if err != nil {
				return err
			}
			counts := ds.CategoryCounts()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "root\t%s\n", ds.Root())
			fmt.Fprintf(w, "split\t%s\n", ds.Split())
			fmt.Fprintf(w, "classes\t%s\n", humanize.Comma(int64(ds.Classes().Len())))
			fmt.Fprintf(w, "samples\t%s\n", humanize.Comma(int64(ds.Len())))
			for _, c := range datasets.Categories {
				fmt.Fprintf(w, "  %s\t%s\n", c, humanize.Comma(int64(counts[c])))
			}
			return w.Flush()
		},
	}
}

func (a *app) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Measure the label noise on the verification samples",
		Long: "Prints the noise report of the split, in YAML or JSON. With --plot-dir it also saves the " +
			"per-class agreement and label histogram charts as PNG.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.openDataset()
			if err != nil {
				return err
			}
			r, err := noise.Analyze(ds, a.settings.Report.TopConfusions)
			if err != nil {
				return err
			}
			if err := r.Write(cmd.OutOrStdout(), a.settings.Report.Format); err != nil {
				return err
			}

			dir := a.settings.Report.PlotDir
			if dir == "" {
				return nil
			}
			histogram := filepath.Join(dir, fmt.Sprintf("%s_labels.png", ds.Split()))
			if err := noise.PlotLabelHistogram(r, histogram); err != nil {
				return err
			}
			klog.Infof("saved %s", histogram)
			if r.Verification == 0 {
				klog.Warningf("no verification samples in split %s, skipping agreement chart", ds.Split())
				return nil
			}
			agreement := filepath.Join(dir, fmt.Sprintf("%s_agreement.png", ds.Split()))
			if err := noise.PlotClassAgreement(r, agreement); err != nil {
				return err
			}
			klog.Infof("saved %s", agreement)
			return nil
		},
	}
	cmd.Flags().String("format", "yaml", "Report format: yaml or json.")
	cmd.Flags().String("plot-dir", "", "Directory where to save the charts. No charts if empty.")
	cmd.Flags().Int("top", 10, "Number of confusion pairs to list, -1 for all.")
	a.bindFlag(cmd, "report.format", "format")
	a.bindFlag(cmd, "report.plot_dir", "plot-dir")
	a.bindFlag(cmd, "report.top_confusions", "top")
	return cmd
}

func (a *app) getCommand() *cobra.Command {
	var chwSize int
	cmd := &cobra.Command{
		Use:   "get <index>",
		Short: "Print the labels and the transformed image size of one sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid index %q", args[0])
			}
			ds, err := a.openDataset()
			if err != nil {
				return err
			}
			s, err := ds.Sample(index)
			if err != nil {
				return err
			}
			item, err := ds.Get(index)
			if err != nil {
				return err
			}

			classes := ds.Classes()
			labelName := func(l datasets.Label) string {
				if i, ok := l.Get(); ok {
					return fmt.Sprintf("%d (%s)", i, classes.Name(i))
				}
				return l.String()
			}
			size := item.Image.Bounds().Size()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "index\t%d\n", item.Index)
			fmt.Fprintf(w, "path\t%s\n", s.Path)
			fmt.Fprintf(w, "category\t%s\n", s.Category())
			fmt.Fprintf(w, "clean\t%s\n", labelName(s.Clean))
			fmt.Fprintf(w, "noisy\t%s\n", labelName(s.Noisy))
			fmt.Fprintf(w, "target\t%d\n", item.Target)
			fmt.Fprintf(w, "image\t%dx%d\n", size.X, size.Y)
			if chwSize > 0 {
				data, err := datasets.ToCHW(item.Image, chwSize)
				if err != nil {
					return err
				}
				plane := chwSize * chwSize
				var means [3]float64
				for c := range means {
					for _, v := range data[c*plane : (c+1)*plane] {
						means[c] += float64(v)
					}
					means[c] /= float64(plane)
				}
				fmt.Fprintf(w, "chw\t3x%dx%d mean=(%.3f, %.3f, %.3f)\n", chwSize, chwSize, means[0], means[1], means[2])
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&chwSize, "chw", 0, "Also convert the image to a planar float32 buffer of size x size and print its channel means.")
	return cmd
}

func (a *app) batchCommand() *cobra.Command {
	var (
		size int
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build one gomlx batch and print the tensor shapes",
		Long: "Builds the first batch of an epoch with the same adapter used for training. The transform " +
			"settings must produce images of a single size.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.openDataset()
			if err != nil {
				return err
			}
			var shuffle *rand.Rand
			if seed != 0 {
				shuffle = rand.New(rand.NewSource(seed))
			}
			td, err := datasets.NewTrainDataset(ds, size, shuffle)
			if err != nil {
				return err
			}
			_, inputs, labels, err := td.WithDType(dtypes.Float32).Yield()
			if err != nil {
				return errors.WithMessagef(err, "building batch from %s", td.Name())
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dataset: %s\n", td.Name())
			fmt.Fprintf(out, "images:  %s %v\n", inputs[0].DType(), inputs[0].Shape().Dimensions)
			fmt.Fprintf(out, "indices: %s %v\n", inputs[1].DType(), inputs[1].Shape().Dimensions)
			fmt.Fprintf(out, "targets: %s %v\n", labels[0].DType(), labels[0].Shape().Dimensions)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 32, "Batch size.")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Shuffle seed. 0 keeps the manifest order.")
	return cmd
}
