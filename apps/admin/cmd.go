package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/like"
	"github.com/trezcool/academia/storage/docstore"
	"github.com/trezcool/academia/storage/docstore/pgdoc"
)

var (
	// mockable
	gooseRunFunc     = pgdoc.RunMigration
	isTerminalFunc   = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readResponseFunc = func() (string, error) { return bufio.NewReader(os.Stdin).ReadString('\n') }

	errHelp            = errors.New("help provided")
	errAborted         = errors.New("aborted")
	errConfirmRequired = errors.New("not a terminal: use --yes to confirm")
	errNoSQLDatabase   = errors.New("migrations only apply to the postgres engine")
	errMemoryEngine    = errors.New("the memory engine does not outlive the command: set database.engine to mongo or postgres")
)

// checkEngine refuses stores whose writes would be lost when the command exits.
func checkEngine(engine string) error {
	if engine == "" || engine == docstore.EngineMemory {
		return errMemoryEngine
	}
	return nil
}

type commandLine struct {
	db        *sql.DB // nil unless the store is backed by postgres
	courseSvc *course.Service
	likeSvc   *like.Service
	out       io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:                "admin",
		Short:              "Academia administration commands",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(cli.seedCmd(), cli.migrateCmd(), cli.reconcileLikesCmd())
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) seedCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add the sample course catalog (every run adds a new copy)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if err := cli.confirm("Add the sample course catalog?"); err != nil {
					return err
				}
			}
			return cli.seed(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, down, status, ...) against the postgres store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			if cli.db == nil {
				return errNoSQLDatabase
			}
			return gooseRunFunc(args[0], cli.db, args[1:]...)
		},
	}
}

func (cli *commandLine) reconcileLikesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-likes",
		Short: "Bring every course like counter back in line with the likes ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.reconcileLikes(cmd.Context())
		},
	}
}

func (cli *commandLine) confirm(question string) error {
	if !isTerminalFunc() {
		return errConfirmRequired
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	resp, err := readResponseFunc()
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(resp)) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}

func (cli *commandLine) seed(ctx context.Context) error {
	courses, err := cli.courseSvc.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d courses added\n", len(courses))
	return nil
}

func (cli *commandLine) reconcileLikes(ctx context.Context) error {
	fixed, err := cli.likeSvc.Reconcile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d like counters reconciled\n", fixed)
	return nil
}
