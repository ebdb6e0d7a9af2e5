// Command despachoctl is a terminal client for the legal API: it checks free
// hours, books appointments, chats with the assistant and runs case
// predictions through the same services the web widgets use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/wolfman30/despacho-web/internal/appointment"
	"github.com/wolfman30/despacho-web/internal/chat"
	appconfig "github.com/wolfman30/despacho-web/internal/config"
	"github.com/wolfman30/despacho-web/internal/identity"
	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/prediction"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

const usage = `Uso: despachoctl [opciones] <comando> [argumentos]

Comandos:
  hours <YYYY-MM-DD>   horarios disponibles para una fecha
  book                 agendar una cita (ver "despachoctl book -h")
  chat                 conversar con el asistente legal
  predict              analizar un caso (ver "despachoctl predict -h")
  stats                estadísticas de predicciones
  history              predicciones recientes

Opciones:
`

var errUsage = errors.New("usage")

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "No se pudo leer .env:", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli holds the services a command runs against.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	appointments *appointment.Service
	chat         *chat.Service
	prediction   *prediction.Service
	ids          *identity.FileStore
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg := appconfig.Load()

	fs := flag.NewFlagSet("despachoctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	chatURL := fs.String("chat-api", cfg.ChatAPIURL, "URL del servicio de chat y citas")
	predictionURL := fs.String("prediction-api", cfg.PredictionAPIURL, "URL del servicio de predicción")
	timeout := fs.Duration("timeout", cfg.UpstreamTimeout, "tiempo máximo por llamada")
	tz := fs.String("tz", cfg.DisplayTimezone, "zona horaria para mostrar fechas")
	idFile := fs.String("id-file", "", "archivo con el identificador de usuario (por defecto en el directorio de configuración)")
	logLevel := fs.String("log-level", "warn", "nivel de log (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	ids, err := identityStore(*idFile)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logger := logging.NewWithWriter(*logLevel, stderr)
	loc := appointment.LoadLocation(*tz)
	api := legalapi.New(legalapi.Options{
		ChatBaseURL:       *chatURL,
		PredictionBaseURL: *predictionURL,
		Timeout:           *timeout,
		Logger:            logger,
	})
	c := &cli{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		appointments: appointment.NewService(appointment.Config{
			API: api, Logger: logger, Location: loc,
		}),
		chat: chat.NewService(chat.Config{API: api, Logger: logger}),
		prediction: prediction.NewService(prediction.Config{
			API: api, Logger: logger, Location: loc, Debounce: time.Millisecond,
		}),
		ids: ids,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "hours":
		err = c.hours(ctx, rest)
	case "book":
		err = c.book(ctx, rest)
	case "chat":
		err = c.chatLoop(ctx, rest)
	case "predict":
		err = c.predict(ctx, rest)
	case "stats":
		err = c.stats(ctx)
	case "history":
		err = c.history(ctx, rest)
	default:
		fmt.Fprintf(stderr, "Comando desconocido: %q\n\n", cmd)
		fs.Usage()
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
}

func identityStore(path string) (*identity.FileStore, error) {
	if path != "" {
		return identity.NewFileStore(path), nil
	}
	return identity.DefaultFileStore()
}
