package main

// Example command that loads the train split of a noisy label dataset,
// prints the label categories and converts a small batch into gomlx tensors.
//
// Usage:
//   go run ./datasets/example -root ~/data/birds
//
// The root must hold classes.txt, training_labels_noise_80.txt and the
// train/ images. Images are decoded lazily, only the batch is read.

import (
	"flag"
	"fmt"

	"github.com/Noofbiz/noisylabeln/datasets"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"
)

func main() {
	root := flag.String("root", "~/data/noisylabeln", "dataset root")
	size := flag.Int("size", 64, "images are resized to size x size")
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	ds, err := datasets.NewNoisyLabelDataset(datasets.Options{
		Root:      *root,
		Split:     datasets.SplitTrain,
		Transform: datasets.Resize(*size, *size),
	})
	if err != nil {
		klog.Fatalf("failed to load dataset: %+v", err)
	}
	fmt.Printf("Loaded %s from %s\n", ds.Name(), ds.Root())
	fmt.Printf("Total samples: %d, classes: %d\n", ds.Len(), ds.Classes().Len())
	counts := ds.CategoryCounts()
	for _, c := range datasets.Categories {
		fmt.Printf("  %-13s %d\n", c, counts[c])
	}

	// The first few verification samples show how often the noisy label is right.
	verification := ds.VerificationIndices()
	for _, idx := range verification[:min(5, len(verification))] {
		s, _ := ds.Sample(idx)
		fmt.Printf("  sample %d: clean=%s noisy=%s\n", idx, ds.Classes().Name(s.Clean.Index), ds.Classes().Name(s.Noisy.Index))
	}

	n := min(8, ds.Len())
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	fmt.Printf("Loading batch of %d images...\n", n)
	images, targets, err := ds.Batch(indices)
	if err != nil {
		klog.Fatalf("failed to build batch: %+v", err)
	}
	batch, err := datasets.MakeImageBatch(images, targets, indices)
	if err != nil {
		klog.Fatalf("failed to make image batch: %+v", err)
	}
	imgT, targetT, _, err := batch.ToGomlxTensors(dtypes.Float32)
	if err != nil {
		klog.Fatalf("failed to convert batch to gomlx tensors: %+v", err)
	}
	fmt.Printf("  Images shape:  %v\n", imgT.Shape().Dimensions)
	fmt.Printf("  Targets shape: %v\n", targetT.Shape().Dimensions)
	fmt.Printf("  Targets: %v\n", batch.Targets)
}
