package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/client"
	"github.com/jmgilman/xcmd/internal/service"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show host information",
	Long:  `Show the operating system, architecture and process details commands run with.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == outputText {
			output = outputYAML
		}
		if err := checkOutputFormat(output); err != nil {
			return err
		}

		var info map[string]string
		if server, _ := cmd.Flags().GetString("server"); server != "" {
			var err error
			if info, err = client.New(server).Info(cmd.Context()); err != nil {
				return err
			}
		} else {
			info = service.New(detectHost(), nil).Info()
		}

		return writeStructured(cmd.OutOrStdout(), output, info)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().String("server", "", "show information for a remote xcmd server")
	infoCmd.Flags().StringP("output", "o", outputYAML, "output format (json or yaml)")
}
