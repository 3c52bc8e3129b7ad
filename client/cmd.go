package client

import (
	"fmt"
	"log"
	"os"

	"github.com/aep/mintdb/config"
	dbcmd "github.com/aep/mintdb/db/cmd"
	"github.com/spf13/cobra"
)

var (
	file    string
	atomic  bool
	address = "http://localhost:5052"

	CMD = &cobra.Command{
		Use:   "remote",
		Short: "access a partition through a mintdb server",
	}

	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Put a key-value pair",
		Args:  cobra.ExactArgs(2),
		Run:   put,
	}

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Get value for a key",
		Args:  cobra.ExactArgs(1),
		Run:   get,
	}

	delCmd = &cobra.Command{
		Use:     "del [key]",
		Aliases: []string{"rm"},
		Short:   "Delete a key-value pair",
		Args:    cobra.ExactArgs(1),
		Run:     del,
	}

	listCmd = &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List key-value pairs under a prefix",
		Args:  cobra.MaximumNArgs(1),
		Run:   list,
	}

	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Apply a batch file",
		Run:   apply,
	}
)

func init() {
	if env := os.Getenv("MINTDB_ADDRESS"); env != "" {
		address = env
	}
	CMD.PersistentFlags().StringVar(&address, "address", address, "gateway address")

	applyCmd.Flags().StringVarP(&file, "file", "f", "", "Path to YAML batch file, - for stdin")
	applyCmd.MarkFlagRequired("file")
	applyCmd.Flags().BoolVar(&atomic, "atomic", false, "apply all items in one transaction")

	CMD.AddCommand(putCmd)
	CMD.AddCommand(getCmd)
	CMD.AddCommand(delCmd)
	CMD.AddCommand(listCmd)
	CMD.AddCommand(applyCmd)
}

func parseArg(s string) []byte {
	b, err := config.ParseBytes(s)
	if err != nil {
		log.Fatal(err)
	}
	return b
}

func get(cmd *cobra.Command, args []string) {
	v, ok, err := New(address).Get(cmd.Context(), parseArg(args[0]))
	if err != nil {
		log.Fatalf("Failed to get: %v", err)
	}
	if !ok {
		log.Fatal("not found")
	}
	fmt.Println(dbcmd.EscapeNonPrintable(v))
}

func put(cmd *cobra.Command, args []string) {
	prev, existed, err := New(address).Insert(cmd.Context(), parseArg(args[0]), parseArg(args[1]))
	if err != nil {
		log.Fatalf("Failed to put: %v", err)
	}
	if existed {
		fmt.Println(dbcmd.EscapeNonPrintable(prev))
	}
}

func del(cmd *cobra.Command, args []string) {
	prev, existed, err := New(address).Remove(cmd.Context(), parseArg(args[0]))
	if err != nil {
		log.Fatalf("Failed to delete: %v", err)
	}
	if existed {
		fmt.Println(dbcmd.EscapeNonPrintable(prev))
	}
}

func list(cmd *cobra.Command, args []string) {
	var prefix []byte
	if len(args) > 0 {
		prefix = parseArg(args[0])
	}
	entries, err := New(address).ScanPrefix(cmd.Context(), prefix)
	if err != nil {
		log.Fatalf("Failed to scan: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\n", dbcmd.EscapeNonPrintable(e.Key), dbcmd.EscapeNonPrintable(e.Value))
	}
}

func apply(cmd *cobra.Command, args []string) {
	batch, err := config.ReadBatchFile(file)
	if err != nil {
		log.Fatal(err)
	}

	rsp, err := New(address).Apply(cmd.Context(), batch, atomic)
	if rsp != nil {
		dbcmd.PrintReport(os.Stdout, rsp.Applied, len(batch))
		for _, v := range rsp.Violations {
			fmt.Printf("violation at %d: %s %s\n", v.Index, v.Kind, dbcmd.EscapeNonPrintable(v.Key))
		}
	}
	if err != nil {
		log.Fatalf("rejected: %v", err)
	}
}
