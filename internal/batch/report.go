package batch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Report summarises a batch run.
type Report struct {
	InputDir  string        `yaml:"input_dir,omitempty" json:"input_dir,omitempty"`
	Started   time.Time     `yaml:"started" json:"started"`
	Duration  time.Duration `yaml:"duration" json:"duration_ns"`
	Processed int           `yaml:"processed" json:"processed"`
	Failed    int           `yaml:"failed" json:"failed"`
	SubImages int           `yaml:"sub_images" json:"sub_images"`
	Results   []Result      `yaml:"results" json:"results"`
}

// Add records the result of one scan.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
	if res.Err != nil {
		r.Failed++
		return
	}
	r.Processed++
	r.SubImages += len(res.Outputs)
}

// Errors returns the failed results.
func (r *Report) Errors() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary returns a one-line description of the run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d scans processed, %d failed, %d sub-images written in %s",
		r.Processed, r.Failed, r.SubImages, r.Duration.Round(time.Millisecond))
}

// WriteReport writes a report to a YAML file
func WriteReport(r *Report, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadReport reads a report from a YAML file
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	return &r, nil
}
