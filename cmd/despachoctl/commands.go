package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wolfman30/despacho-web/internal/appointment"
	"github.com/wolfman30/despacho-web/internal/chat"
	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/prediction"
)

// errReported means the failure was already shown to the user.
var errReported = errors.New("reported")

func (c *cli) hours(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Uso: despachoctl hours <YYYY-MM-DD>")
		return errUsage
	}
	view, err := c.appointments.LoadAvailableHours(ctx, args[0])
	if view.Alert != nil {
		fmt.Fprintln(c.stderr, view.Alert.Message)
	}
	if err != nil {
		return errReported
	}
	for _, opt := range view.Options {
		if opt.Value == "" {
			continue
		}
		fmt.Fprintf(c.stdout, "%s\t%s\n", opt.Value, opt.Label)
	}
	return nil
}

func (c *cli) book(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var form appointment.Form
	fs.StringVar(&form.Name, "nombre", "", "nombre completo")
	fs.StringVar(&form.Email, "email", "", "correo electrónico")
	fs.StringVar(&form.Phone, "telefono", "", "teléfono")
	fs.StringVar(&form.Date, "fecha", "", "fecha (YYYY-MM-DD)")
	fs.StringVar(&form.Time, "hora", "", "hora (HH:MM)")
	fs.StringVar(&form.ServiceType, "servicio", "", "tipo de servicio: "+strings.Join(appointment.ServiceCodes(), ", "))
	fs.StringVar(&form.Description, "descripcion", "", "descripción del caso")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := c.ids.Get()
	if err != nil {
		return err
	}
	view, err := c.appointments.HandleCitaSubmit(ctx, userID, form)
	if err != nil {
		if len(view.Errors) > 0 {
			fmt.Fprintln(c.stderr, "Por favor corrija los siguientes errores:")
			for _, msg := range view.Errors {
				fmt.Fprintln(c.stderr, "  -", msg)
			}
		} else if view.Alert != nil {
			fmt.Fprintln(c.stderr, view.Alert.Message)
		}
		return errReported
	}
	fmt.Fprintln(c.stdout, view.Alert.Message)
	return nil
}

func (c *cli) chatLoop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := c.ids.Get()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.stdout, "Asistente Legal. Escribe tu consulta, un número para elegir una sugerencia,")
	fmt.Fprintf(c.stdout, "/rapido <%s> para una consulta rápida o /salir para terminar.\n", strings.Join(chat.QuickPromptNames(), "|"))
	suggestions := chat.StartSuggestions
	c.printSuggestions(suggestions)

	scanner := bufio.NewScanner(c.stdin)
	for {
		fmt.Fprint(c.stdout, "👤 Tú: ")
		if !scanner.Scan() {
			fmt.Fprintln(c.stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/salir" {
			return nil
		}

		var reply *chat.Reply
		switch {
		case strings.HasPrefix(line, "/rapido"):
			reply, err = c.chat.SendQuickPrompt(ctx, userID, strings.TrimSpace(strings.TrimPrefix(line, "/rapido")))
		default:
			if n, convErr := strconv.Atoi(line); convErr == nil && n >= 1 && n <= len(suggestions) {
				line = suggestions[n-1]
			}
			reply, err = c.chat.SendMessage(ctx, userID, line)
		}
		if errors.Is(err, chat.ErrUnknownPrompt) {
			fmt.Fprintln(c.stderr, "Consulta rápida desconocida.")
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if reply == nil {
			continue
		}

		fmt.Fprintf(c.stdout, "🤖 Asistente Legal: %s\n", reply.Bot.Text)
		if reply.ScrollTo == "citas" {
			fmt.Fprintln(c.stdout, "   Para agendar una cita usa: despachoctl book -h")
		}
		if len(reply.Suggestions) > 0 {
			suggestions = reply.Suggestions
			c.printSuggestions(suggestions)
		}
	}
}

func (c *cli) printSuggestions(suggestions []string) {
	for i, s := range suggestions {
		fmt.Fprintf(c.stdout, "   [%d] %s\n", i+1, s)
	}
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

var tierLabels = map[prediction.Tier]string{
	prediction.TierHigh:   "alta",
	prediction.TierMedium: "media",
	prediction.TierLow:    "baja",
}

func (c *cli) predict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var intake legalapi.CaseIntake
	var evidence listFlag
	fs.StringVar(&intake.CaseType, "tipo", "", "tipo de caso: "+strings.Join(caseTypeCodes(), ", "))
	fs.StringVar(&intake.Description, "descripcion", "", "descripción del caso (mínimo 10 caracteres)")
	fs.Float64Var(&intake.DisputedAmount, "monto", 0, "monto en disputa")
	fs.StringVar(&intake.Complexity, "complejidad", "", "complejidad: "+strings.Join(prediction.Complexities, ", "))
	fs.Var(&evidence, "evidencia", "evidencia disponible (repetible)")
	fs.StringVar(&intake.PriorHistory, "antecedentes", "", "antecedentes relevantes")
	fs.StringVar(&intake.Jurisdiction, "jurisdiccion", "", "jurisdicción (por defecto el tipo de caso)")
	exportDir := fs.String("exportar", "", "directorio donde guardar el resultado en JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	intake.Evidence = evidence

	userID, err := c.ids.Get()
	if err != nil {
		return err
	}
	view, err := c.prediction.Submit(ctx, userID, intake)
	if err != nil {
		var verr *prediction.ValidationError
		switch {
		case errors.As(err, &verr):
			fmt.Fprintln(c.stderr, verr.Message)
		case view != nil && view.Toast != nil:
			fmt.Fprintln(c.stderr, view.Toast.Message)
		default:
			return err
		}
		return errReported
	}

	r := view.Result
	fmt.Fprintf(c.stdout, "Probabilidad de éxito: %d%% (%s)\n", r.Percent, tierLabels[r.Tier])
	fmt.Fprintf(c.stdout, "Sentencia probable:    %s\n", r.Outcome)
	fmt.Fprintf(c.stdout, "Tiempo estimado:       %d meses\n", r.EstimatedMonths)
	fmt.Fprintf(c.stdout, "Confianza:             %d%%\n", r.ConfidencePercent)
	printList(c, "Factores de riesgo", r.RiskFactors)
	printList(c, "Recomendaciones", r.Recommendations)

	if *exportDir == "" {
		return nil
	}
	export, err := c.prediction.Export(r)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(export.Document, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(*exportDir, export.FileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintln(c.stdout, "Resultado exportado a", path)
	return nil
}

func printList(c *cli, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(c.stdout, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintln(c.stdout, "  -", item)
	}
}

func caseTypeCodes() []string {
	codes := make([]string, 0, len(prediction.DefaultCaseTypes))
	for _, ct := range prediction.DefaultCaseTypes {
		codes = append(codes, ct.Code)
	}
	return codes
}

func (c *cli) stats(ctx context.Context) error {
	stats, err := c.prediction.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Predicciones totales: %d\n", stats.Total)
	for _, s := range stats.ByType {
		fmt.Fprintf(c.stdout, "  %-10s %4d  éxito promedio %3.0f%%  %.1f meses\n",
			s.CaseType, s.Total, s.AverageProbability*100, s.AverageMonths)
	}
	return nil
}

func (c *cli) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", prediction.DefaultHistoryLimit, "número de predicciones")
	if err := fs.Parse(args); err != nil {
		return err
	}
	history, err := c.prediction.History(ctx, *limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(history.Predictions)
}
