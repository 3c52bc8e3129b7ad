package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aep/mintdb/config"
	"github.com/aep/mintdb/db"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "db",
	Short: "direct access to a local partition",
}

var (
	file   string
	atomic bool
)

func init() {
	applyCmd.Flags().StringVarP(&file, "file", "f", "", "Path to YAML batch file, - for stdin")
	applyCmd.MarkFlagRequired("file")
	applyCmd.Flags().BoolVar(&atomic, "atomic", false, "apply all items in one transaction")

	CMD.AddCommand(listCmd)
	CMD.AddCommand(getCmd)
	CMD.AddCommand(putCmd)
	CMD.AddCommand(delCmd)
	CMD.AddCommand(applyCmd)
}

var errNotFound = errors.New("not found")

func open(cmd *cobra.Command) (*db.Handle, error) {
	cfg, err := config.Current()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	h, err := cfg.OpenHandle(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return h, nil
}

func parseArg(s string) ([]byte, error) {
	b, err := config.ParseBytes(s)
	if err != nil {
		return nil, fmt.Errorf("invalid argument %q: %w", s, err)
	}
	return b, nil
}

var listCmd = &cobra.Command{
	Use:          "ls [prefix]",
	Short:        "List key-value pairs under a prefix",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefix []byte
		if len(args) > 0 {
			var err error
			if prefix, err = parseArg(args[0]); err != nil {
				return err
			}
		}

		h, err := open(cmd)
		if err != nil {
			return err
		}
		defer h.Close()

		entries, err := h.ScanPrefix(cmd.Context(), prefix)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", EscapeNonPrintable(e.Key), EscapeNonPrintable(e.Value))
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:          "get [key]",
	Short:        "Get value for a key",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseArg(args[0])
		if err != nil {
			return err
		}

		h, err := open(cmd)
		if err != nil {
			return err
		}
		defer h.Close()

		v, ok, err := h.Get(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("get failed: %w", err)
		}
		if !ok {
			return errNotFound
		}
		fmt.Fprintln(cmd.OutOrStdout(), EscapeNonPrintable(v))
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:          "put [key] [value]",
	Short:        "Put a key-value pair",
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseArg(args[0])
		if err != nil {
			return err
		}
		value, err := parseArg(args[1])
		if err != nil {
			return err
		}

		h, err := open(cmd)
		if err != nil {
			return err
		}
		defer h.Close()

		prev, existed, err := h.Insert(cmd.Context(), key, value)
		if err != nil {
			return fmt.Errorf("put failed: %w", err)
		}
		if existed {
			fmt.Fprintln(cmd.OutOrStdout(), EscapeNonPrintable(prev))
		}
		return nil
	},
}

var delCmd = &cobra.Command{
	Use:          "del [key]",
	Aliases:      []string{"rm"},
	Short:        "Delete a key-value pair",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseArg(args[0])
		if err != nil {
			return err
		}

		h, err := open(cmd)
		if err != nil {
			return err
		}
		defer h.Close()

		prev, existed, err := h.Remove(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("del failed: %w", err)
		}
		if existed {
			fmt.Fprintln(cmd.OutOrStdout(), EscapeNonPrintable(prev))
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:          "apply",
	Short:        "Apply a batch file",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := config.ReadBatchFile(file)
		if err != nil {
			return fmt.Errorf("invalid batch: %w", err)
		}

		h, err := open(cmd)
		if err != nil {
			return err
		}
		defer h.Close()

		var report *db.BatchReport
		if atomic {
			report, err = h.ApplyAtomic(cmd.Context(), batch)
		} else {
			report, err = h.Apply(cmd.Context(), batch)
		}
		out := cmd.OutOrStdout()
		PrintReport(out, report.Applied, len(batch))
		for _, v := range report.Violations {
			fmt.Fprintf(out, "violation at %d: %s %s\n", v.Index, v.Kind, EscapeNonPrintable(v.Key))
		}
		if err != nil {
			return fmt.Errorf("batch failed: %w", err)
		}
		return nil
	},
}

func PrintReport(w io.Writer, applied, total int) {
	fmt.Fprintf(w, "applied %d/%d\n", applied, total)
}

// EscapeNonPrintable renders b as ASCII, escaping other bytes as \xNN.
func EscapeNonPrintable(b []byte) string {
	var result strings.Builder
	for _, c := range b {
		if c >= 32 && c <= 126 {
			result.WriteByte(c)
		} else {
			result.WriteString(fmt.Sprintf("\\x%02x", c))
		}
	}
	return result.String()
}
