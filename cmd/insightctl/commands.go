package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sales-insights-go/internal/actionable"
	"sales-insights-go/internal/aggregator"
	"sales-insights-go/internal/app"
	"sales-insights-go/internal/config"
	"sales-insights-go/internal/dataset"
	"sales-insights-go/internal/logger"
	"sales-insights-go/internal/processor"
)

type configLoader func() (config.Config, error)

func newRootCmd(load configLoader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "insightctl",
		Short:         "Ingest sales meetings and derive insights from their transcripts",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)

	withApp := func(run func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Environment, cfg.LogLevel)
			log.Logger.SetOutput(cmd.ErrOrStderr())
			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a, args)
		}
	}

	root.AddCommand(
		newIngestCmd(withApp),
		newPendingCmd(withApp),
		newProcessCmd(withApp),
		newReportCmd(withApp),
	)
	return root
}

type appRunner func(run func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error

func newIngestCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Load clients from a .csv or .xlsx dataset",
		Long: `Load clients from a meetings dataset.

Expected columns: Nombre, Correo Electronico, Numero de Telefono (optional),
Vendedor asignado, Fecha de la Reunion, closed, Transcripcion.

Rows missing a required field or with an unparseable date are rejected and
listed in the summary.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			rows, err := dataset.Load(args[0])
			if err != nil {
				return err
			}
			sum, err := a.Ingester.Ingest(cmd.Context(), rows)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		}),
	}
}

func newPendingCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List clients that have no insight yet",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			ids, err := a.Batch.Pending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(ids))
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}),
	}
}

func newProcessCmd(withApp appRunner) *cobra.Command {
	var ids []int64
	var failFast bool
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Derive insights for pending clients",
		Long: `Derive insights for every pending client, or only for the given IDs.

Clients that already have an insight are skipped. A failed client does not
stop the run unless --fail-fast is set.

Examples:
  insightctl process
  insightctl process --id 12 --id 15`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			if cmd.Flags().Changed("fail-fast") {
				a.Batch.FailFast = failFast
			}
			var rep processor.Report
			if len(ids) > 0 {
				rep = a.Batch.RunIDs(cmd.Context(), ids)
			} else {
				var err error
				if rep, err = a.Batch.Run(cmd.Context()); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), rep)
		}),
	}
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "client ID to process (repeatable)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed client")
	return cmd
}

func newReportCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the aggregated report and action cards",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app.App, _ []string) error {
			rows, err := a.Store.ListClientsWithInsights(cmd.Context())
			if err != nil {
				return err
			}
			view := aggregator.Aggregate(rows)
			return printJSON(cmd.OutOrStdout(), struct {
				View  aggregator.View         `json:"view"`
				Cards []actionable.ActionCard `json:"cards"`
			}{view, actionable.Generate(view)})
		}),
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
