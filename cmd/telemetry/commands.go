package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vjranagit/telemetry/pkg/api"
	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/evaluator"
	"github.com/vjranagit/telemetry/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("configuration loaded",
		"listen_addr", a.cfg.Server.ListenAddr,
		"storage_backend", a.cfg.Storage.Backend,
		"storage_path", a.cfg.Storage.Path,
		"catalog", a.cfg.Catalog,
	)

	server := api.NewServer(a.cfg.Server.ListenAddr, api.Deps{
		Store:     a.store,
		Functions: a.functions,
		Reducers:  a.reducers,
		Resolver:  a.resolver,
	},
		api.WithLogger(a.logger),
		api.WithTimeout(a.cfg.Server.Timeout),
		api.WithEvalTimeout(a.cfg.Server.EvalTimeout),
	)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", "addr", a.cfg.Server.ListenAddr)
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		a.logger.Info("shutdown signal received, stopping server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		a.logger.Error("server shutdown error", "error", err)
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

var listJSON bool

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the built-in functions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		list := a.functions.List()
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		rows := make([]metadataRow, 0, len(list))
		for _, m := range list {
			row := metadataRow{name: m.Name, description: m.Description}
			for _, p := range m.Parameters {
				row.params = append(row.params, p.Name)
			}
			rows = append(rows, row)
		}
		return writeTable(cmd.OutOrStdout(), rows)
	},
}

var reducersCmd = &cobra.Command{
	Use:   "reducers",
	Short: "List the built-in reducers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		list := a.reducers.List()
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		rows := make([]metadataRow, 0, len(list))
		for _, m := range list {
			row := metadataRow{name: m.Name, description: m.Description}
			for _, p := range m.Parameters {
				row.params = append(row.params, p.Name)
			}
			rows = append(rows, row)
		}
		return writeTable(cmd.OutOrStdout(), rows)
	},
}

var (
	evalProject     string
	evalGranularity string
	evalStart       string
	evalEnd         string
	evalUser        string
)

var evalCmd = &cobra.Command{
	Use:   "eval NAME [PARAM...]",
	Short: "Draw a definition against the configured storage and print it as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	project, err := types.ParseProject(evalProject)
	if err != nil {
		return err
	}
	iv, err := api.ParseInterval(evalGranularity, evalStart, evalEnd, time.Now())
	if err != nil {
		return err
	}
	drawCmd, err := ast.NewDrawCommand(args[0], api.ParseParams(strings.Join(args[1:], ",")), ast.Source{Text: strings.Join(args, " ")})
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ev := evaluator.New(a.functions, a.reducers, a.resolver, evaluator.WithLogger(a.logger))

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Server.EvalTimeout)
	defer cancel()

	res, err := ev.Draw(ctx, drawCmd, evaluator.Context{Project: project, Interval: iv, Requester: evalUser})
	if err != nil {
		return err
	}

	out, err := api.MarshalDraw(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func init() {
	functionsCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	reducersCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")

	evalCmd.Flags().StringVarP(&evalProject, "project", "p", "", "project as owner/name")
	evalCmd.Flags().StringVarP(&evalGranularity, "granularity", "g", "Day", "Day, Week or Month")
	evalCmd.Flags().StringVar(&evalStart, "start", "", "first date (YYYY-MM-DD or RFC 3339); defaults to six periods before end")
	evalCmd.Flags().StringVar(&evalEnd, "end", "", "last date; defaults to now")
	evalCmd.Flags().StringVarP(&evalUser, "user", "u", "anonymous", "user the definitions are resolved for")
	_ = evalCmd.MarkFlagRequired("project")
}

type metadataRow struct {
	name        string
	params      []string
	description string
}

func writeTable(w io.Writer, rows []metadataRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.name, strings.Join(r.params, ", "), r.description)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
