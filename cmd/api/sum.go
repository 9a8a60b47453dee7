package main

import (
	"fmt"
	"strconv"

	"product-catalog/internal/summation"

	"github.com/spf13/cobra"
)

func newSumCommand() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "sum <n>",
		Short: "Print 1 + 2 + ... + n",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid n %q: %w", args[0], err)
			}

			switch method {
			case "iterative", "formula", "recursive", "all":
			default:
				return fmt.Errorf("unknown method %q", method)
			}
			if n > summation.MaxExactN {
				return fmt.Errorf("n %d is above %d, the sum would overflow", n, summation.MaxExactN)
			}
			if (method == "recursive" || method == "all") && n > summation.MaxRecursiveN {
				return fmt.Errorf("n %d is too deep for the recursive method (max %d)", n, summation.MaxRecursiveN)
			}

			out := cmd.OutOrStdout()
			switch method {
			case "iterative":
				fmt.Fprintln(out, summation.SumIterative(n))
			case "formula":
				fmt.Fprintln(out, summation.SumFormula(n))
			case "recursive":
				fmt.Fprintln(out, summation.SumRecursive(n))
			case "all":
				fmt.Fprintf(out, "iterative: %d\n", summation.SumIterative(n))
				fmt.Fprintf(out, "formula:   %d\n", summation.SumFormula(n))
				fmt.Fprintf(out, "recursive: %d\n", summation.SumRecursive(n))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "formula", "iterative, formula, recursive or all")
	return cmd
}
