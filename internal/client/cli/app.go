package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dmitrijs2005/tentech/internal/netx"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/repomanager"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultServerAddr is the gRPC address used when -s is not given.
const DefaultServerAddr = "127.0.0.1:50051"

// ErrUsage is returned for an unknown or missing subcommand.
var ErrUsage = errors.New("usage: cli <register|activate|resend|login|add-product|migrate> [flags]")

type dialFunc func(addr string) (grpc.ClientConnInterface, func() error, error)

type migrateFunc func(ctx context.Context, dsn string) error

type uploadFunc func(ctx context.Context, url string, body []byte) error

type App struct {
	reader   *bufio.Reader
	out      io.Writer
	dial     dialFunc
	migrate  migrateFunc
	upload   uploadFunc
	readFile func(name string) ([]byte, error)
}

func NewApp(in io.Reader, out io.Writer) *App {
	return &App{
		reader:   bufio.NewReader(in),
		out:      out,
		dial:     dialGRPC,
		migrate:  runMigrations,
		upload:   putPresigned,
		readFile: os.ReadFile,
	}
}

func dialGRPC(addr string) (grpc.ClientConnInterface, func() error, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Close, nil
}

func putPresigned(ctx context.Context, url string, body []byte) error {
	return netx.UploadToPresignedURL(ctx, nil, url, body)
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db)
}

type command func(a *App, ctx context.Context, args []string) error

var commands = map[string]command{
	"register":    (*App).register,
	"activate":    (*App).activate,
	"resend":      (*App).resend,
	"login":       (*App).login,
	"add-product": (*App).addProduct,
	"migrate":     (*App).migrateCmd,
}

// Run dispatches args[0] to its subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		names := make([]string, 0, len(commands))
		for n := range commands {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("%w (unknown command %q, known: %v)", ErrUsage, args[0], names)
	}
	return cmd(a, ctx, args[1:])
}
