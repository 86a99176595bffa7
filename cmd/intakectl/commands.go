package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/intake-assistant/internal/adapters/mcp"
	"github.com/kirillkom/intake-assistant/internal/bootstrap"
	"github.com/kirillkom/intake-assistant/internal/config"
	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/loader"
	"github.com/kirillkom/intake-assistant/internal/observability/logging"
)

const (
	serviceName = "intakectl"
	version     = "0.1.0"
)

type rootOptions struct {
	formDef  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "intakectl",
		Short:         "Extract intake form values from session transcripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&opts.formDef, "form-def", "", "form definition YAML (default: built-in form)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(
		newProcessCmd(opts),
		newReportCmd(opts),
		newSchemaCmd(opts),
		newMCPCmd(opts),
	)
	return cmd
}

func (o *rootOptions) engine(cmd *cobra.Command) (*bootstrap.Engine, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	if o.formDef != "" {
		cfg.FormDefinitionPath = o.formDef
	}
	logger := logging.NewJSONLoggerTo(cmd.ErrOrStderr(), serviceName, o.logLevel)
	return bootstrap.NewEngine(cfg, bootstrap.Options{Service: serviceName, Logger: logger})
}

var speakerUsage = fmt.Sprintf("speaker label for every line (default: %s)", intake.DefaultSpeaker)

type processOptions struct {
	speaker   string
	formState string
}

func newProcessCmd(root *rootOptions) *cobra.Command {
	opts := &processOptions{}
	cmd := &cobra.Command{
		Use:   "process [file|-]",
		Short: "Process a transcript and print the result as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := root.engine(cmd)
			if err != nil {
				return err
			}
			result, err := processInput(cmd, engine, args, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&opts.speaker, "speaker", "", speakerUsage)
	cmd.Flags().StringVar(&opts.formState, "form-state", "", "JSON file with the current case document")
	return cmd
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &processOptions{}
	var out string
	cmd := &cobra.Command{
		Use:   "report [file|-]",
		Short: "Process a transcript and write the review workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := root.engine(cmd)
			if err != nil {
				return err
			}
			result, err := processInput(cmd, engine, args, opts)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := engine.Exporter.Write(*result, f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.speaker, "speaker", "", speakerUsage)
	cmd.Flags().StringVar(&opts.formState, "form-state", "", "JSON file with the current case document")
	cmd.Flags().StringVarP(&out, "out", "o", "review.xlsx", "output workbook path")
	return cmd
}

func newSchemaCmd(root *rootOptions) *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the flattened field schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := root.engine(cmd)
			if err != nil {
				return err
			}
			if stage != "" && !domain.Stage(stage).Valid() {
				return fmt.Errorf("unknown stage %q", stage)
			}
			fields := engine.ProcessUC.Fields()
			if stage != "" {
				fields = engine.ProcessUC.StageFields(domain.Stage(stage))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"fields": fields})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "only print fields of this stage")
	return cmd
}

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as an MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := root.engine(cmd)
			if err != nil {
				return err
			}
			uc := engine.ProcessUC.WithSource("mcp")
			srv := mcpadapter.NewServer(mcpadapter.ServerConfig{
				Processor: uc,
				Schema:    uc,
				Version:   version,
			})
			return mcpadapter.ServeStdio(srv)
		},
	}
}

func processInput(cmd *cobra.Command, engine *bootstrap.Engine, args []string, opts *processOptions) (*domain.ProcessResult, error) {
	text, err := readTranscript(cmd.InOrStdin(), args)
	if err != nil {
		return nil, err
	}
	req := ports.ProcessRequest{Text: text, DefaultSpeaker: opts.speaker}
	if opts.formState != "" {
		raw, err := os.ReadFile(opts.formState)
		if err != nil {
			return nil, fmt.Errorf("read form state: %w", err)
		}
		if err := json.Unmarshal(raw, &req.FormState); err != nil {
			return nil, fmt.Errorf("parse form state: %w", err)
		}
	}
	return engine.ProcessUC.WithSource("cli").ProcessTranscript(cmd.Context(), req)
}

func readTranscript(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return loader.Decode("stdin.txt", "", raw)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return loader.Decode(filepath.Base(args[0]), "", raw)
}
