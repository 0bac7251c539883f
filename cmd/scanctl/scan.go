package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/config"
	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/engine"
	"github.com/privoscope/privoscope/internal/infra/ai/openai"
	"github.com/privoscope/privoscope/internal/infra/store/minio"
	"github.com/privoscope/privoscope/internal/infra/store/mysql"
	"github.com/privoscope/privoscope/internal/infra/store/postgres"
	"github.com/privoscope/privoscope/internal/infra/store/s3"
	"github.com/privoscope/privoscope/internal/orchestrator"
	"github.com/privoscope/privoscope/internal/scanners"
)

var (
	scanConfigPath string
	scanSeverity   string
	scanNoAI       bool
	scanRuleFilter []string
)

var scanCmd = &cobra.Command{
	Use:   "scan <project_path>",
	Short: "Run the pipeline against a local project path",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanConfigPath, "config", "config.yaml", "path to config.yaml")
	scanCmd.Flags().StringVar(&scanSeverity, "severity-floor", "LOW", "minimum severity to report (LOW|MEDIUM|HIGH|CRITICAL)")
	scanCmd.Flags().BoolVar(&scanNoAI, "no-ai", false, "disable the AI Collaborator Adapter for this run")
	scanCmd.Flags().StringSliceVar(&scanRuleFilter, "rules", nil, "restrict to this comma-separated rule id list")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	projectPath := args[0]

	cfg, err := config.Load(scanConfigPath)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	ctx := context.Background()

	store, err := buildStoreForCLI(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store init error: %w", err)
	}

	var aiIface domainai.Client
	if !scanNoAI && cfg.AI.AIEnabled && cfg.AI.AIAPIKey != "" {
		aiIface = openai.NewClient(openai.Config{
			APIKey:      cfg.AI.AIAPIKey,
			ModelID:     cfg.AI.AIModelID,
			MaxTokens:   cfg.AI.AIMaxTokens,
			Temperature: cfg.AI.AITemperature,
			Timeout:     cfg.AI.AITimeout,
		})
	}
	aiEnabled := aiIface != nil

	eng := engine.New(scanners.New(), engine.WithWorkers(cfg.AI.ScanWorkers))
	eng.SetAIEnabled(aiEnabled)
	if aiEnabled {
		eng.SetAIClient(aiIface)
	}

	orch := orchestrator.New(eng, store, aiIface, aiEnabled, cfg.AI.GlobalDeadline, cfg.AI.IgnoredPathExtra)

	opts := findings.DefaultOptions()
	opts.AIEnabled = aiEnabled
	opts.MaxBytesPerFile = cfg.AI.RuleMaxBytesPerFile
	if scanSeverity != "" {
		opts.SeverityFloor = findings.Severity(scanSeverity)
	}
	if len(scanRuleFilter) > 0 {
		opts.RuleFilterAll = false
		opts.RuleFilter = map[string]bool{}
		for _, r := range scanRuleFilter {
			opts.RuleFilter[r] = true
		}
	}

	req := findings.ScanRequest{ProjectPath: projectPath, Options: opts}

	start := time.Now()
	report, locator := orch.Run(ctx, req)
	printSummary(report, locator, time.Since(start))

	if report.ExecutiveSummary.Status == findings.StatusNonCompliant {
		os.Exit(1)
	}
	return nil
}

func printSummary(report *findings.Report, locator string, elapsed time.Duration) {
	statusColor := color.New(color.FgGreen)
	switch report.ExecutiveSummary.Status {
	case findings.StatusNeedsImprovement:
		statusColor = color.New(color.FgYellow)
	case findings.StatusNonCompliant:
		statusColor = color.New(color.FgRed)
	case findings.StatusPartial:
		statusColor = color.New(color.FgMagenta)
	}

	fmt.Println()
	fmt.Printf("  correlation id   %s\n", report.Metadata.CorrelationID)
	fmt.Printf("  status           ")
	statusColor.Println(string(report.ExecutiveSummary.Status))
	fmt.Printf("  compliance score %d/100\n", report.ExecutiveSummary.ComplianceScore)
	fmt.Printf("  violations       %d (%d high/critical)\n", report.ExecutiveSummary.TotalViolations, report.ExecutiveSummary.HighSeverityCount)
	fmt.Printf("  elapsed          %s\n", elapsed.Round(time.Millisecond))
	if len(report.Metadata.DegradedReasons) > 0 {
		color.New(color.FgYellow).Printf("  degraded         %v\n", report.Metadata.DegradedReasons)
	}
	fmt.Printf("  report locator   %s\n", locator)
	fmt.Println()
}

func buildStoreForCLI(ctx context.Context, cfg *config.Config) (domainstore.ResultStore, error) {
	switch cfg.StoreBackend {
	case "s3":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		blobs, err := s3.New(cfg.S3.Region, cfg.S3.BucketName, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			return nil, err
		}
		st := postgres.New(db, blobs)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		db, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, err
		}
		blobs, err := minio.New(ctx, cfg.Minio.Endpoint, cfg.Minio.Region, cfg.Minio.BucketName, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			return nil, err
		}
		st := mysql.New(db, blobs)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return st, nil
	}
}
