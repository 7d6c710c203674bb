package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/logging"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/render"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// errValidationFailed makes validate exit non-zero after it has printed its findings.
var errValidationFailed = errors.New("validation failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ekaya-taxonomy",
		Short: "Infer table relationships and group hierarchy from a schema export",
		Long: `ekaya-taxonomy reads a context.json schema export, validates its group
hierarchy and infers candidate relationships between tables from column
naming conventions and sampled values.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (environment variables override it)")

	rootCmd.AddCommand(newAnalyzeCmd(&configPath), newValidateCmd(&configPath), newVersionCmd())
	return rootCmd
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		outputPath string
		formatName string
	)

	cmd := &cobra.Command{
		Use:   "analyze <context.json>",
		Short: "Analyze an export and write the taxonomy report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(formatName)
			if err != nil {
				return err
			}

			report, logger, err := analyzeFile(cmd.Context(), *configPath, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if report.HierarchyErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", report.HierarchyErr)
			}

			if outputPath == "" {
				return render.WriteReport(cmd.OutOrStdout(), report, format)
			}
			return writeReportFile(outputPath, report, format, logger)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVarP(&formatName, "format", "f", string(render.FormatJSON), "report format: json, yaml, markdown or mermaid")
	return cmd
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <context.json>",
		Short: "Check an export for structural problems and hierarchy cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, logger, err := analyzeFile(cmd.Context(), *configPath, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			out := cmd.OutOrStdout()
			for _, d := range report.Diagnostics {
				fmt.Fprintf(out, "%-7s %s %s: %s\n", d.Severity, d.Kind, d.Subject, d.Message)
			}

			errorsFound := models.CountBySeverity(report.Diagnostics, models.SeverityError)
			fmt.Fprintf(out, "%d groups, %d tables, %d relationships, %d warnings, %d errors\n",
				report.Summary.Groups, report.Summary.Tables, report.Summary.Relationships,
				report.Summary.Warnings, errorsFound)

			if report.HierarchyErr != nil || errorsFound > 0 {
				return errValidationFailed
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ekaya-taxonomy %s\n", Version)
		},
	}
}

// analyzeFile loads configuration, builds the logger and runs the pipeline.
// The caller owns the returned logger.
func analyzeFile(ctx context.Context, configPath, inputPath string) (*models.Report, *zap.Logger, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	logger.Debug("Analyzing export",
		zap.String("path", inputPath),
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version))

	report, err := services.NewAnalysisService(cfg.Inference, logger).Analyze(ctx, f)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("analyze %s: %w", inputPath, err)
	}
	return report, logger, nil
}

func writeReportFile(path string, report *models.Report, format render.Format, logger *zap.Logger) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	if err := render.WriteReport(f, report, format); err != nil {
		return err
	}
	logger.Info("Report written", zap.String("path", path), zap.String("format", string(format)))
	return nil
}
