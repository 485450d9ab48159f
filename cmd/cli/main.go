package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeovahfialho/t212-digrin/internal/app"
	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/internal/report"
	"github.com/jeovahfialho/t212-digrin/internal/service"
	"github.com/jeovahfialho/t212-digrin/internal/storage/postgres"
	"github.com/jeovahfialho/t212-digrin/internal/transform"
	"github.com/jeovahfialho/t212-digrin/pkg/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "t212-digrin",
		Short: "Trading 212 → Digrin report pipeline",
		Long: `Solicita o relatório mensal da Trading 212, converte para o formato
de importação do Digrin, grava as duas versões no S3 e envia o link por e-mail.`,
		SilenceUsage: true,
	}

	// Comando run
	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Executa o pipeline completo para um mês",
		Long: `Executa solicitar → aguardar → baixar → transformar → gravar → notificar.
Sem --month, pergunta o mês (ENTER confirma o mês anterior).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			if month == "" {
				var err error
				month, err = promptMonth(cmd.InOrStdin(), cmd.OutOrStdout(), time.Now())
				if err != nil {
					return err
				}
			}
			return runPipeline(cmd.Context(), cmd.OutOrStdout(), month)
		},
	}
	runCmd.Flags().StringP("month", "m", "", "Mês do relatório (YYYY-MM)")

	// Comando transform
	var transformCmd = &cobra.Command{
		Use:   "transform",
		Short: "Converte um CSV da Trading 212 localmente",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			extraMap, _ := cmd.Flags().GetStringToString("map")
			blacklist, _ := cmd.Flags().GetStringSlice("blacklist")
			rules := transform.DefaultRules().With(extraMap, blacklist)
			return transformFile(cmd.OutOrStdout(), in, out, transform.NewTransformer(rules))
		},
	}
	transformCmd.Flags().StringP("in", "i", "", "CSV de entrada (export da Trading 212)")
	transformCmd.Flags().StringP("out", "o", "", "CSV de saída (padrão: stdout)")
	transformCmd.Flags().StringToString("map", nil, "Mapeamentos extras de ticker (T212=DIGRIN)")
	transformCmd.Flags().StringSlice("blacklist", nil, "Tickers extras a descartar")
	transformCmd.MarkFlagRequired("in")

	// Comando history
	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Lista execuções registradas no PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			limit, _ := cmd.Flags().GetInt("limit")
			return showHistory(cmd.Context(), cmd.OutOrStdout(), domain.RunFilter{Month: month, Limit: limit})
		},
	}
	historyCmd.Flags().StringP("month", "m", "", "Filtra por mês (YYYY-MM)")
	historyCmd.Flags().IntP("limit", "l", 20, "Número máximo de execuções")

	// Comando health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Verifica saúde das dependências",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth(cmd.Context(), cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(runCmd, transformCmd, historyCmd, healthCmd)
	return rootCmd
}

// promptMonth asks for the report month; an empty answer picks the month
// before now.
func promptMonth(in io.Reader, out io.Writer, now time.Time) (string, error) {
	def := domain.PreviousMonth(now)

	fmt.Fprintln(out, `Mês do relatório no formato "YYYY-MM":`)
	fmt.Fprintf(out, "Ou confirme o padrão %q com ENTER.\n", def)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("erro ao ler mês: %w", err)
	}

	month := strings.TrimSpace(line)
	if month == "" {
		return def, nil
	}
	if _, err := domain.MonthRange(month); err != nil {
		return "", err
	}
	return month, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Process()
	if err != nil {
		return nil, fmt.Errorf("configuração inválida: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.Environment == "development"); err != nil {
		return nil, fmt.Errorf("erro ao inicializar logger: %w", err)
	}
	return cfg, nil
}

func runPipeline(parent context.Context, out io.Writer, month string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(out, "🚀 Gerando relatório de %s...\n", month)

	res, err := a.Pipeline.Run(ctx, month)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n✅ Relatório %d processado\n", res.ReportID)
	fmt.Fprintf(out, "├─ Bruto: s3://%s/%s\n", cfg.BucketName, res.RawKey)
	fmt.Fprintf(out, "├─ Digrin: s3://%s/%s\n", cfg.BucketName, res.TransformedKey)
	fmt.Fprintf(out, "└─ Linhas: %d → %d\n", res.RowsIn, res.RowsOut)
	fmt.Fprintf(out, "\n📧 Link enviado para %s\n", cfg.Recipient())
	return nil
}

func transformFile(stdout io.Writer, inPath, outPath string, t *transform.Transformer) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("erro ao ler %s: %w", inPath, err)
	}

	encoded, res, err := service.TransformBytes(report.NewCodec(), t, data)
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err := stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("erro ao gravar %s: %w", outPath, err)
	}

	fmt.Fprintf(stdout, "✅ %d de %d linhas gravadas em %s\n", res.RowsOut, res.RowsIn, outPath)
	return nil
}

func showHistory(ctx context.Context, out io.Writer, filter domain.RunFilter) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL não definido")
	}

	db, err := app.ConnectPostgres(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := postgres.NewRunRepository(db.Pool()).ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "❌ Nenhuma execução encontrada")
		return nil
	}
	printRuns(out, runs)
	return nil
}

func printRuns(out io.Writer, runs []domain.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MÊS\tSTATUS\tRELATÓRIO\tLINHAS\tINÍCIO\tDURAÇÃO")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d→%d\t%s\t%s\n",
			r.Month, r.Status, r.ReportID, r.RowsIn, r.RowsOut,
			r.StartedAt.Local().Format("2006-01-02 15:04"), duration)
	}
	w.Flush()
}

func checkHealth(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	fmt.Fprintln(out, "🏥 Verificando saúde do sistema...")
	fmt.Fprintln(out)

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(out, "❌ Erro: %v\n", err)
		return err
	}
	defer a.Close()

	failed := 0
	for name, check := range a.Checks() {
		if err := check(ctx); err != nil {
			failed++
			fmt.Fprintf(out, "%s: ❌ Erro: %v\n", name, err)
			continue
		}
		fmt.Fprintf(out, "%s: ✅ OK\n", name)
	}
	if cfg.RedisURL != "" && a.Cache == nil {
		fmt.Fprintln(out, "cache: ❌ Não disponível")
	}

	if failed > 0 {
		return fmt.Errorf("%d dependência(s) com falha", failed)
	}
	fmt.Fprintln(out, "\n✅ Verificação concluída!")
	return nil
}
