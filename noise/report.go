// Package noise measures label noise on the verification samples of a
// dataset, the samples that carry both a clean and a noisy label.
package noise

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/Noofbiz/noisylabeln/datasets"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// ClassStats holds the label counts of one class.
type ClassStats struct {
	Class int    `json:"class" yaml:"class"`
	Name  string `json:"name" yaml:"name"`
	// Clean and Noisy count samples carrying this class as clean or noisy label.
	Clean int `json:"clean" yaml:"clean"`
	Noisy int `json:"noisy" yaml:"noisy"`
	// Support counts verification samples whose clean label is this class, and
	// Agreeing those among them whose noisy label matches.
	Support   int     `json:"support" yaml:"support"`
	Agreeing  int     `json:"agreeing" yaml:"agreeing"`
	Agreement float64 `json:"agreement" yaml:"agreement"`
}

// Confusion counts verification samples with a given clean label that were
// noisily labeled as another class.
type Confusion struct {
	Clean     int    `json:"clean" yaml:"clean"`
	CleanName string `json:"clean_name" yaml:"clean_name"`
	Noisy     int    `json:"noisy" yaml:"noisy"`
	NoisyName string `json:"noisy_name" yaml:"noisy_name"`
	Count     int    `json:"count" yaml:"count"`
}

// Report summarizes the labels of a dataset split.
type Report struct {
	Split      string         `json:"split" yaml:"split"`
	Samples    int            `json:"samples" yaml:"samples"`
	NumClasses int            `json:"num_classes" yaml:"num_classes"`
	Categories map[string]int `json:"categories" yaml:"categories"`

	Verification int `json:"verification" yaml:"verification"`
	Agreeing     int `json:"agreeing" yaml:"agreeing"`
	// NoiseRate is 1 - Agreeing/Verification, or 0 without verification samples.
	NoiseRate float64 `json:"noise_rate" yaml:"noise_rate"`

	// Classes lists, by class index, the classes that appear in any label.
	Classes       []ClassStats `json:"classes" yaml:"classes"`
	TopConfusions []Confusion  `json:"top_confusions" yaml:"top_confusions"`
}

// Analyze builds the report of src. topConfusions limits the number of
// confusion pairs kept; a negative value keeps all of them.
func Analyze(src datasets.LabelSource, topConfusions int) (*Report, error) {
	if src == nil {
		return nil, errors.New("label source cannot be nil")
	}
	samples := src.Samples()
	if len(samples) == 0 {
		return nil, errors.Wrapf(datasets.ErrEmptyDataset, "nothing to analyze in split %s", src.Split())
	}
	classes := src.Classes()
	numClasses := classes.Len()

	r := &Report{
		Split:      string(src.Split()),
		Samples:    len(samples),
		NumClasses: numClasses,
		Categories: make(map[string]int, len(datasets.Categories)),
	}
	for _, c := range datasets.Categories {
		r.Categories[c.String()] = 0
	}

	stats := make([]ClassStats, numClasses)
	for i := range stats {
		stats[i] = ClassStats{Class: i, Name: classes.Name(i)}
	}
	inRange := func(l datasets.Label) bool { return l.Valid && l.Index >= 0 && l.Index < numClasses }
	confusions := make(map[[2]int]int)

	for i, s := range samples {
		r.Categories[s.Category().String()]++
		if inRange(s.Clean) {
			stats[s.Clean.Index].Clean++
		}
		if inRange(s.Noisy) {
			stats[s.Noisy.Index].Noisy++
		}
		if s.Category() != datasets.CategoryVerification {
			continue
		}
		if !inRange(s.Clean) || !inRange(s.Noisy) {
			return nil, errors.Wrapf(datasets.ErrInternalConsistency,
				"sample %d has labels (%s, %s) outside of %d classes", i, s.Clean, s.Noisy, numClasses)
		}
		r.Verification++
		cs := &stats[s.Clean.Index]
		cs.Support++
		if s.Clean.Index == s.Noisy.Index {
			r.Agreeing++
			cs.Agreeing++
		} else {
			confusions[[2]int{s.Clean.Index, s.Noisy.Index}]++
		}
	}

	if r.Verification > 0 {
		r.NoiseRate = 1 - float64(r.Agreeing)/float64(r.Verification)
	} else {
		klog.Warningf("split %s has no verification samples, noise rate is not measurable", src.Split())
	}
	for i := range stats {
		cs := &stats[i]
		if cs.Support > 0 {
			cs.Agreement = float64(cs.Agreeing) / float64(cs.Support)
		}
		if cs.Clean > 0 || cs.Noisy > 0 {
			r.Classes = append(r.Classes, *cs)
		}
	}
	r.TopConfusions = rankConfusions(confusions, classes, topConfusions)
	klog.V(1).Infof("noise report for %s: %d samples, %d verification, noise rate %.4f",
		r.Split, r.Samples, r.Verification, r.NoiseRate)
	return r, nil
}

// rankConfusions orders pairs by decreasing count, then by class indices.
func rankConfusions(counts map[[2]int]int, classes *datasets.ClassTable, top int) []Confusion {
	ranked := make([]Confusion, 0, len(counts))
	for pair, n := range counts {
		ranked = append(ranked, Confusion{
			Clean:     pair[0],
			CleanName: classes.Name(pair[0]),
			Noisy:     pair[1],
			NoisyName: classes.Name(pair[1]),
			Count:     n,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Clean != b.Clean {
			return a.Clean < b.Clean
		}
		return a.Noisy < b.Noisy
	})
	if top >= 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

// Stats returns the statistics of class, and false if it appears in no label.
func (r *Report) Stats(class int) (ClassStats, bool) {
	i := sort.Search(len(r.Classes), func(i int) bool { return r.Classes[i].Class >= class })
	if i < len(r.Classes) && r.Classes[i].Class == class {
		return r.Classes[i], true
	}
	return ClassStats{}, false
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encoding report as yaml")
	}
	return enc.Close()
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding report as json")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return errors.WithStack(err)
}

// Write writes the report in format, "yaml" or "json".
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		return r.WriteYAML(w)
	case "json":
		return r.WriteJSON(w)
	default:
		return errors.Errorf("unknown report format %q, expected yaml or json", format)
	}
}
