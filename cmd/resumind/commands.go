package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"resumind/internal/analysis"
	"resumind/internal/bootstrap"
	"resumind/internal/feedback"
	"resumind/internal/pipeline"
	"resumind/internal/preview"
	"resumind/internal/resumes"
	"resumind/internal/shared/config"
)

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "resumind",
		Usage:  "analyze résumés against a job description and manage saved results",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "run the full pipeline on a PDF résumé",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "path to the PDF résumé", Required: true},
					&cli.StringFlag{Name: "company", Usage: "company name (optional)"},
					&cli.StringFlag{Name: "job-title", Usage: "job title"},
					&cli.StringFlag{Name: "job-description", Usage: "job description text, or @path to read it from a file"},
					&cli.StringFlag{Name: "server", Usage: "base URL of a resumind API to call instead of the local provider", Sources: cli.EnvVars("RESUMIND_SERVER")},
					&cli.DurationFlag{Name: "timeout", Usage: "timeout for --server calls", Value: 0},
					&cli.BoolFlag{Name: "json", Usage: "print the stored record as JSON"},
				},
				Action: analyzeAction,
			},
			{
				Name:   "list",
				Usage:  "list saved résumé analyses, newest first",
				Action: listAction,
			},
			{
				Name:      "show",
				Usage:     "print one saved analysis as JSON",
				ArgsUsage: "<id>",
				Action:    showAction,
			},
			{
				Name:      "delete",
				Usage:     "delete one saved analysis",
				ArgsUsage: "<id>",
				Action:    deleteAction,
			},
			{
				Name:  "wipe",
				Usage: "delete every saved analysis",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "confirm deletion"},
				},
				Action: wipeAction,
			},
		},
	}
}

func openApp(ctx context.Context, cmd *cli.Command) (*bootstrap.App, error) {
	cfg := config.Load()
	if cfg.KVBackend == "memory" {
		fmt.Fprintln(errWriter(cmd), "warning: KV_BACKEND=memory; saved analyses live only in this process")
	}
	return bootstrap.BuildCLI(ctx, cfg)
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func analyzeAction(ctx context.Context, cmd *cli.Command) error {
	out := writer(cmd)
	path := cmd.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read résumé: %w", err)
	}
	description, err := readMaybeFile(cmd.String("job-description"))
	if err != nil {
		return err
	}

	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var analyzer pipeline.Analyzer = app.Gateway
	if server := strings.TrimSpace(cmd.String("server")); server != "" {
		analyzer = analysis.NewRemoteClient(server, cmd.Duration("timeout"))
	}

	file := &pipeline.File{Name: filepath.Base(path), Data: data}
	if pages, err := preview.PageCount(data); err == nil {
		fmt.Fprintf(out, "%s, %d page(s)\n", file.Summary(), pages)
	} else {
		fmt.Fprintln(out, file.Summary())
	}

	deps := app.PipelineDeps(analyzer)
	deps.Sink = pipeline.MultiSink{deps.Sink, pipeline.SinkFunc(func(_ context.Context, u pipeline.StatusUpdate) {
		fmt.Fprintln(out, u.Status)
	})}
	res, runErr := pipeline.NewRunner(deps).Run(ctx, pipeline.Input{
		File:           file,
		CompanyName:    cmd.String("company"),
		JobTitle:       cmd.String("job-title"),
		JobDescription: description,
	})
	if runErr != nil {
		return fmt.Errorf("analysis failed at %s: %w", res.FailedStage, runErr)
	}

	rec, err := app.Resumes.Get(ctx, res.RecordID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return printJSON(out, rec)
	}
	printSummary(out, rec)
	return nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	recs, err := app.Resumes.List(ctx)
	if err != nil {
		return err
	}
	out := writer(cmd)
	if len(recs) == 0 {
		fmt.Fprintln(out, "No saved analyses.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Created", "Company", "Job Title", "Score")
	for _, r := range recs {
		score := "pending"
		if !r.Pending() {
			score = fmt.Sprintf("%d", r.Feedback.OverallScore)
		}
		if err := table.Append(r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.CompanyName, r.JobTitle, score); err != nil {
			return err
		}
	}
	return table.Render()
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("usage: resumind show <id>")
	}
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	rec, err := app.Resumes.Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(writer(cmd), rec)
}

func deleteAction(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("usage: resumind delete <id>")
	}
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Resumes.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(writer(cmd), "Deleted %s\n", id)
	return nil
}

func wipeAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errors.New("refusing to wipe without --yes")
	}
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Resumes.Wipe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(writer(cmd), "Deleted %d analyses\n", n)
	return nil
}

func printSummary(out io.Writer, rec resumes.Record) {
	fmt.Fprintf(out, "\nRecord:   %s\n", rec.ID)
	fmt.Fprintf(out, "View:     /resume/%s\n", rec.ID)
	fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	if rec.Pending() {
		fmt.Fprintln(out, "Feedback: pending")
		return
	}
	fmt.Fprintf(out, "Overall:  %d/100\n", rec.Feedback.OverallScore)
	for _, nc := range rec.Feedback.Categories() {
		fmt.Fprintf(out, "  %-13s %3d\n", nc.Name, nc.Category.Score)
		for _, tip := range nc.Category.Tips {
			marker := "+"
			if tip.Type != feedback.TipGood {
				marker = "-"
			}
			fmt.Fprintf(out, "    %s %s\n", marker, tip.Tip)
		}
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readMaybeFile returns s, or the contents of the file when s is "@path".
func readMaybeFile(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(s, "@"))
	if err != nil {
		return "", fmt.Errorf("read job description: %w", err)
	}
	return string(data), nil
}
