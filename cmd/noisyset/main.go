// noisyset inspects a noisy label image dataset: label categories, noise
// report and charts, single samples and gomlx batches.
//
// Usage:
//
//	noisyset --root ~/data/birds inspect
//	noisyset --root ~/data/birds report --format json --plot-dir output/
//	noisyset --root ~/data/birds --split test get 12
//	noisyset --root ~/data/birds batch --size 32
package main

import (
	"os"

	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := newRootCommand().Execute(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}
