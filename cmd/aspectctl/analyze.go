package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spacesedan/aspectflow/internal/app"
	"github.com/spacesedan/aspectflow/internal/models"
	"github.com/spacesedan/aspectflow/internal/reporting"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	backend     string
	taxonomy    string
	discovery   bool
	sort        string
	priority    string
	minMentions int
	full        bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Analyze newline-delimited feedback and print the aspect summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}

	settings := app.LoadSettings()
	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", settings.Sentiment.Backend, "sentiment backend: vader, hugot or remote")
	f.StringVar(&opts.taxonomy, "taxonomy", settings.Detector.TaxonomyPath, "YAML taxonomy file")
	f.BoolVar(&opts.discovery, "discover", settings.Detector.Discovery, "report aspects discovered outside the taxonomy")
	f.StringVar(&opts.sort, "sort", "", "sort aspects by mentions, negative, positive or aspect")
	f.StringVar(&opts.priority, "priority", "", "only show aspects with this priority")
	f.IntVar(&opts.minMentions, "min-mentions", 0, "only show aspects mentioned at least this often")
	f.BoolVar(&opts.full, "full", false, "print the whole run including the report")
	return cmd
}

func readFeedback(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func runAnalyze(cmd *cobra.Command, path string, opts analyzeOptions) error {
	view, err := opts.view()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}
	feedback, err := readFeedback(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	settings := app.LoadSettings()
	settings.Sentiment.Backend = opts.backend
	settings.Detector.TaxonomyPath = opts.taxonomy
	settings.Detector.Discovery = opts.discovery

	orch, closeClassifier, err := app.NewOrchestrator(cmd.Context(), settings, app.PipelineDeps{})
	if err != nil {
		return err
	}
	defer closeClassifier()

	resp, err := orch.Process(cmd.Context(), models.UploadRequest{Feedback: feedback})
	for _, r := range resp.Rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped entry %d: %s\n", r.Index+1, r.Reason)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if opts.full {
		return enc.Encode(resp.Run)
	}
	result := *resp.Run.Result
	result.Aspects = reporting.ApplyView(result.Aspects, view)
	return enc.Encode(result)
}

func (o analyzeOptions) view() (reporting.View, error) {
	key, ok := reporting.ParseSortKey(o.sort)
	if !ok {
		return reporting.View{}, fmt.Errorf("unknown sort %q", o.sort)
	}
	v := reporting.View{Sort: key, MinMentions: o.minMentions}
	if o.priority != "" {
		p, err := models.ParsePriority(o.priority)
		if err != nil {
			return v, err
		}
		v.Priority = p
	}
	return v, nil
}
