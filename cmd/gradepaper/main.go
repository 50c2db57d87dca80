package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gradepaper/gradepaper/internal/grading"
	"github.com/gradepaper/gradepaper/internal/handler"
	appI18n "github.com/gradepaper/gradepaper/internal/i18n"
	"github.com/gradepaper/gradepaper/internal/model"
	"github.com/gradepaper/gradepaper/internal/ocr"
	"github.com/gradepaper/gradepaper/internal/pipeline"
	"github.com/gradepaper/gradepaper/internal/store"
	"github.com/gradepaper/gradepaper/internal/vision"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradepaper",
		Short: "Exam paper structuring and grading engine",
	}
	root.AddCommand(processCmd(), gradeCmd(), serveCmd(), exportCmd())
	return root
}

func addCommonFlags(f *pflag.FlagSet) {
	f.String("db", "gradepaper.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addVisionFlags(f *pflag.FlagSet) {
	f.String("openai-url", "", "OpenAI-compatible API base URL (empty = default)")
	f.String("openai-key", "", "API key for the vision model")
	f.String("openai-model", "gpt-4o", "Vision model name")
	f.String("openai-embed-model", "text-embedding-3-small", "Embedding model name")
	f.Float64("input-token-cost", 0.0000025, "Cost per input token in dollars")
	f.Float64("output-token-cost", 0.00001, "Cost per output token in dollars")
}

func addOCRFlags(f *pflag.FlagSet) {
	f.Float64("ocr-confidence-threshold", 0.70, "Minimum acceptable OCR confidence")
	f.Float64("handwriting-threshold", 0.60, "Minimum OCR confidence for handwritten pages")
	f.Bool("ai-diagram-detection", true, "Detect diagrams with the vision model")
	f.Float64("image-quality-threshold", 0.5, "Quality score below which a page is flagged")
	f.String("diagram-dir", "diagrams", "Directory for cropped diagram images")
}

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process scanned exam documents into structured JSON",
	}

	for _, sub := range []struct {
		use, short, kind string
	}{
		{"questions <pages-dir>", "Process a question paper", model.KindQuestionPaper},
		{"solutions <pages-dir>", "Process a solution paper", model.KindSolutionPaper},
		{"answers <pages-dir>", "Process a student answer sheet", model.KindAnswerSheet},
	} {
		kind := sub.kind
		c := &cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runProcess(cmd, kind, args[0])
			},
		}
		f := c.Flags()
		addCommonFlags(f)
		addVisionFlags(f)
		addOCRFlags(f)
		f.StringP("output", "o", "", "Output JSON path (default <pages-dir>.json)")
		if kind == model.KindAnswerSheet {
			f.StringP("questions", "q", "", "Processed question paper JSON, for expected question numbers")
			_ = c.MarkFlagRequired("questions")
		}
		cmd.AddCommand(c)
	}
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a processed answer sheet",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	addVisionFlags(f)
	f.StringP("questions", "q", "", "Processed question paper JSON (required)")
	f.StringP("solutions", "s", "", "Processed solution paper JSON (optional)")
	f.StringP("answers", "a", "", "Processed answer sheet JSON (required)")
	f.StringP("output", "o", "", "Report output path (default report_<answers>)")
	f.Float64("semantic-similarity-threshold", 0.80, "Embedding similarity for full marks")
	f.Bool("partial-credit", true, "Allow AI partial credit on low-similarity answers")
	f.Float64("math-tolerance", 0.02, "Relative tolerance for numerical equivalence")
	f.StringP("lang", "l", "en", "Summary language (en, ru)")
	_ = cmd.MarkFlagRequired("questions")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grading review server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	addVisionFlags(f)
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.Float64("semantic-similarity-threshold", 0.80, "Embedding similarity for full marks")
	f.Bool("partial-credit", true, "Allow AI partial credit on low-similarity answers")
	f.Float64("math-tolerance", 0.02, "Relative tolerance for numerical equivalence")
	f.StringP("lang", "l", "en", "Server language (en, ru)")
	f.String("admin-password", "", "Initial admin password (or set GRADEPAPER_ADMIN_PASSWORD)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored grading reports as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADEPAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradepaper")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradepaper")
	v.AddConfigPath("/etc/gradepaper")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func visionClient(v *viper.Viper) (*vision.Client, *vision.CostTracker) {
	costs := vision.NewCostTracker(
		v.GetFloat64("input-token-cost"),
		v.GetFloat64("output-token-cost"),
	)
	client := vision.New(
		v.GetString("openai-url"),
		v.GetString("openai-key"),
		v.GetString("openai-model"),
		v.GetString("openai-embed-model"),
		costs,
	)
	return client, costs
}

func runProcess(cmd *cobra.Command, kind, pagesDir string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	client, costs := visionClient(v)

	// Local OCR engines are external collaborators; without them every
	// page goes through the vision fallback.
	orchestrator := ocr.New(nil, nil, client, ocr.Config{
		ConfidenceThreshold:  v.GetFloat64("ocr-confidence-threshold"),
		HandwritingThreshold: v.GetFloat64("handwriting-threshold"),
		MultiEngine:          true,
	})

	opts := []pipeline.Option{
		pipeline.WithCostSource(costs),
		pipeline.WithQualityThreshold(v.GetFloat64("image-quality-threshold")),
	}
	if v.GetBool("ai-diagram-detection") {
		opts = append(opts, pipeline.WithDiagramLocator(
			pipeline.NewAILocator(client, v.GetString("diagram-dir")),
		))
	}
	p := pipeline.New(pipeline.DirRasterizer{}, orchestrator, opts...)

	outPath := v.GetString("output")
	if outPath == "" {
		outPath = strings.TrimRight(pagesDir, "/") + ".json"
	}

	var doc any
	var metrics model.ProcessingMetrics
	var err error
	switch kind {
	case model.KindQuestionPaper:
		doc, metrics, err = p.ProcessQuestionPaper(ctx, pagesDir)
	case model.KindSolutionPaper:
		doc, metrics, err = p.ProcessSolutionPaper(ctx, pagesDir)
	case model.KindAnswerSheet:
		var paper model.QuestionPaper
		if err := model.LoadJSON(v.GetString("questions"), &paper); err != nil {
			return err
		}
		numbers := make([]string, len(paper.Questions))
		for i, q := range paper.Questions {
			numbers[i] = q.Number
		}
		doc, metrics, err = p.ProcessAnswerSheet(ctx, pagesDir, numbers)
	}
	if err != nil {
		return err
	}

	if err := model.SaveJSON(outPath, doc); err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if _, err := db.SaveDocument(kind, filepath.Base(outPath), doc); err != nil {
		return fmt.Errorf("store document: %w", err)
	}

	slog.Info("processing complete",
		"kind", kind,
		"output", outPath,
		"pages", metrics.TotalPages,
		"diagrams", metrics.DiagramsExtracted,
		"avg_ocr_confidence", metrics.AvgOCRConfidence,
		"api_calls", metrics.APICalls,
		"estimated_cost", metrics.EstimatedCost,
	)
	return nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	var paper model.QuestionPaper
	if err := model.LoadJSON(v.GetString("questions"), &paper); err != nil {
		return err
	}
	var sheet model.AnswerSheet
	if err := model.LoadJSON(v.GetString("answers"), &sheet); err != nil {
		return err
	}

	questions := paper.Questions
	if solPath := v.GetString("solutions"); solPath != "" {
		var solutions model.SolutionPaper
		if err := model.LoadJSON(solPath, &solutions); err != nil {
			return err
		}
		questions = grading.MergeSolutions(questions, solutions.Solutions)
	}

	client, costs := visionClient(v)
	grader := grading.New(client,
		grading.WithEmbedder(client),
		grading.WithCostSource(costs),
		grading.WithSimilarityThreshold(v.GetFloat64("semantic-similarity-threshold")),
		grading.WithPartialCredit(v.GetBool("partial-credit")),
		grading.WithMathTolerance(v.GetFloat64("math-tolerance")),
	)

	report := grader.GradeSheet(ctx, questions, sheet.Answers, sheet.StudentInfo)

	outPath := v.GetString("output")
	if outPath == "" {
		outPath = "report_" + filepath.Base(v.GetString("answers"))
	}
	if err := model.SaveJSON(outPath, report); err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	sheetID, err := db.SaveDocument(model.KindAnswerSheet, filepath.Base(v.GetString("answers")), sheet)
	if err != nil {
		return fmt.Errorf("store answer sheet: %w", err)
	}
	if _, err := db.SaveReport(sheetID, report); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	printSummary(v.GetString("lang"), report, outPath)
	return nil
}

func printSummary(lang string, report model.GradingReport, outPath string) {
	if err := appI18n.Init(lang); err != nil {
		slog.Warn("i18n init failed, using message IDs", "error", err)
	}
	lctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))

	fmt.Println()
	fmt.Println(appI18n.T(lctx, "SummaryHeader"))
	if name := report.StudentInfo["name"]; name != "" {
		fmt.Println(appI18n.Td(lctx, "StudentLine", map[string]any{"Name": name}))
	}
	fmt.Println(appI18n.Td(lctx, "MarksLine", map[string]any{
		"Awarded":   report.TotalAwarded,
		"Available": report.TotalAvailable,
	}))
	fmt.Println(appI18n.Td(lctx, "PercentageLine", map[string]any{
		"Percent": fmt.Sprintf("%.1f", report.Percentage),
	}))
	fmt.Println(appI18n.Td(lctx, "GradeLine", map[string]any{"Grade": report.Grade}))
	fmt.Println(appI18n.Td(lctx, "CostLine", map[string]any{
		"Cost": fmt.Sprintf("%.4f", report.APICost),
	}))
	fmt.Println(appI18n.Td(lctx, "ReportSaved", map[string]any{"Path": outPath}))
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := handler.SeedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, costs := visionClient(v)
	grader := grading.New(client,
		grading.WithEmbedder(client),
		grading.WithCostSource(costs),
		grading.WithSimilarityThreshold(v.GetFloat64("semantic-similarity-threshold")),
		grading.WithPartialCredit(v.GetBool("partial-credit")),
		grading.WithMathTolerance(v.GetFloat64("math-tolerance")),
	)

	h := handler.New(db, grader)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("openai-model"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reports, err := db.ExportReports()
	if err != nil {
		return fmt.Errorf("export reports: %w", err)
	}

	outPath := v.GetString("output")
	if outPath == "" || outPath == "-" {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal reports: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	return model.SaveJSON(outPath, reports)
}
