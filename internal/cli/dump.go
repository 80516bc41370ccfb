package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.bptree/internal/storage"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <path>",
	Short: "Print the header of a tree file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hdr, err := storage.ReadHeader(args[0])
		if err != nil {
			return err
		}

		policy := "multi"
		if hdr.Unique {
			policy = "unique"
		}
		fmt.Printf("signature:   %#x\n", hdr.Signature)
		fmt.Printf("page size:   %d\n", hdr.PageSize)
		fmt.Printf("key size:    %d\n", hdr.KeySize)
		fmt.Printf("value size:  %d\n", hdr.ValueSize)
		fmt.Printf("policy:      %s\n", policy)
		fmt.Printf("root page:   %d (level %d)\n", hdr.RootID, hdr.RootLevel)
		fmt.Printf("elements:    %d\n", hdr.Count)
		fmt.Printf("free head:   %d\n", hdr.FreeHead)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
