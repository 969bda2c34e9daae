package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pppplang/ppppl/pkg/eval"
	"github.com/pppplang/ppppl/pkg/log"
	"github.com/pppplang/ppppl/pkg/metrics"
	"github.com/pppplang/ppppl/pkg/parser"
	"github.com/pppplang/ppppl/pkg/scheduler"
	"github.com/pppplang/ppppl/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ppppl",
	Short:   "A persistent, nondeterministic, guarded-command interpreter",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ppppl version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("db", defaultDBPath(), "Path to the ppppl database file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pppl.db"
	}
	return filepath.Join(home, ".pppl.db")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func openStore(cmd *cobra.Command) (*storage.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	return storage.Open(dbPath)
}

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Parse-check a program and install it as the running program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if _, err := parser.ParseModule(string(src)); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()

		tx, err := s.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		tx.ReplaceCode(string(src))
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing program: %w", err)
		}

		fmt.Printf("loaded %s\n", args[0])
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [FILE]",
	Short: "Optionally load a program, then step forever",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()

		if len(args) == 1 {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if _, err := parser.ParseModule(string(src)); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			tx, err := s.Begin()
			if err != nil {
				return fmt.Errorf("beginning transaction: %w", err)
			}
			tx.ReplaceCode(string(src))
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("committing program: %w", err)
			}
			fmt.Printf("loaded %s\n", args[0])
		}

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			go func() {
				http.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(addr, nil); err != nil {
					log.Logger.Error().Err(err).Msg("metrics server stopped")
				}
			}()
			fmt.Printf("metrics endpoint: http://%s/metrics\n", addr)
		}

		sched := scheduler.New(s, nil)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		stopCh := make(chan struct{})
		go func() {
			<-sigCh
			close(stopCh)
		}()

		for {
			select {
			case <-stopCh:
				fmt.Println("shutting down")
				return nil
			default:
			}

			outcome, err := sched.Step()
			if err != nil {
				fmt.Printf("fault: %v\n", err)
				log.Logger.Error().Err(err).Msg("step fault")
				continue
			}
			switch o := outcome.(type) {
			case scheduler.Deadlock:
				fmt.Println("deadlock")
			case scheduler.TriggeredBlock:
				if len(o.Names) == 0 {
					fmt.Printf("triggered: `%s`\n", o.Name)
				} else {
					fmt.Printf("triggered: `%s` with arguments %s\n", o.Name, formatNames(o.Names))
				}
			}
		}
	},
}

func formatNames(names eval.Names) string {
	s := "{"
	first := true
	for k, v := range names {
		if !first {
			s += ", "
		}
		first = false
		s += fmt.Sprintf("%s: %s", k, v.String())
	}
	return s + "}"
}

var readCmd = &cobra.Command{
	Use:   "read EXPR",
	Short: "Evaluate an expression against the current memory and print its value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exp, err := parser.ParseExp(args[0])
		if err != nil {
			return fmt.Errorf("parsing expression: %w", err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()

		tx, err := s.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		v, err := eval.Eval(exp, tx, eval.Names{})
		if err != nil {
			return fmt.Errorf("evaluating expression: %w", err)
		}
		fmt.Println(v.String())
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write LVAL=EXPR",
	Short: "Evaluate an l-value and expression and write the result, atomically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lval, rhs, err := parser.ParseAssignment(args[0])
		if err != nil {
			return fmt.Errorf("parsing assignment: %w", err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()

		tx, err := s.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}

		path, err := eval.EvalLVal(lval, tx, eval.Names{})
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("evaluating l-value: %w", err)
		}
		val, err := eval.Eval(rhs, tx, eval.Names{})
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("evaluating expression: %w", err)
		}
		if _, err := tx.WriteMemory(path, val); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing memory: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing write: %w", err)
		}

		fmt.Println("ok")
		return nil
	},
}

func init() {
	runCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on (disabled if empty)")
}
