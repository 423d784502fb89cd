package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/conveyor/pkg/variables"
)

func newEncryptVariablesCommand() *cobra.Command {
	var (
		in       string
		out      string
		password string
	)

	cmd := &cobra.Command{
		Use:   "encrypt-variables",
		Short: "Encrypt a variable file for use as sensitive variables",
		Long: `Read a plain variable file (YAML, JSON, TOML or CUE) and write it as an
encrypted sensitive variable file readable by "conveyor run --sensitive-variables".`,
		Example: `  conveyor encrypt-variables --in secrets.yaml --out secrets.enc --password p`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := variables.NewStore()
			if err := variables.LoadFile(vars, in); err != nil {
				return err
			}

			values := make(map[string]string, vars.Len())
			for _, v := range vars.AllRaw() {
				values[v.Name] = v.Value
			}
			if err := variables.EncryptSensitiveFile(out, values, password); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Encrypted %d variables to %s\n", len(values), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "plain variable file")
	cmd.Flags().StringVar(&out, "out", "", "encrypted output file")
	cmd.Flags().StringVar(&password, "password", "", "encryption password")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
