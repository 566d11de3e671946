package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Simplici0/homebuild/internal/pricing"
)

var quoteCmd = &cobra.Command{
	Use:     "quote",
	Short:   "Print the estimate for a project",
	Example: "  server quote --project roofing --detail sqft=2000 --detail roofType=metal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		project, _ := cmd.Flags().GetString("project")
		pairs, _ := cmd.Flags().GetStringArray("detail")
		asJSON, _ := cmd.Flags().GetBool("json")
		return runQuote(cmd.OutOrStdout(), project, pairs, asJSON)
	},
}

func init() {
	quoteCmd.Flags().String("project", "", "project type ("+projectList()+")")
	quoteCmd.Flags().StringArray("detail", nil, "scope field as key=value; repeatable")
	quoteCmd.Flags().Bool("json", false, "print the estimate as JSON")
	_ = quoteCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(out io.Writer, rawProject string, pairs []string, asJSON bool) error {
	project, err := pricing.ParseProject(rawProject)
	if err != nil {
		return err
	}

	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return eris.Errorf("detail %q must be key=value", pair)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	details, err := pricing.ParseDetails(project, fields)
	if err != nil {
		return err
	}
	bands := pricing.Estimate(details)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(previewResponse{Project: project, Label: project.Label(), Estimate: bands})
	}

	fmt.Fprintf(out, "%s\n\n", project.Label())
	for _, line := range bands.BreakdownLines {
		fmt.Fprintf(out, "  %s\n", line)
	}
	fmt.Fprintf(out, "\nConservative  %s\nLikely        %s\nPremium       %s\n",
		pricing.FormatUSD(bands.Conservative),
		pricing.FormatUSD(bands.Likely),
		pricing.FormatUSD(bands.Premium),
	)
	return nil
}

func projectList() string {
	names := make([]string, 0, len(pricing.Projects))
	for _, p := range pricing.Projects {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
