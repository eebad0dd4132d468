package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmgilman/xcmd/internal/client"
	"github.com/jmgilman/xcmd/internal/platform"
	"github.com/jmgilman/xcmd/internal/service"
	"github.com/jmgilman/xcmd/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [command] [arguments...]",
	Short: "Show how a command would be translated",
	Long: `Print the command line that 'xcmd run' would execute, without running it.

With --list, print the command families that are translated between dialects.
Names given with --list limit the table to those commands and show their
counterpart in the other dialect.`,
	Example: `  # What does ls -la become on Windows?
  xcmd translate -p windows ls -la

  # Show every translated command family
  xcmd translate --list

  # What is tasklist called on Unix?
  xcmd translate --list tasklist`,
	RunE: runTranslateCmd,
}

func runTranslateCmd(cmd *cobra.Command, args []string) error {
	list, _ := cmd.Flags().GetBool("list")
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(output); err != nil {
		return err
	}

	if list {
		if len(args) > 0 {
			return printEquivalents(cmd, output, args)
		}
		return printFamilies(cmd, output)
	}
	if len(args) == 0 {
		return fmt.Errorf("requires a command to translate, or --list")
	}

	target, _ := cmd.Flags().GetString("platform")
	server, _ := cmd.Flags().GetString("server")
	req := requestFromArgs(args, target, "", service.DefaultTimeoutSeconds)

	var (
		tr  *service.Translation
		err error
	)
	if server != "" {
		tr, err = client.New(server).Translate(cmd.Context(), req)
	} else {
		tr, err = service.New(detectHost(), nil).Translate(req)
	}
	if err != nil {
		return err
	}

	if output != outputText {
		return writeStructured(cmd.OutOrStdout(), output, tr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), translate.Command{Name: tr.Command, Arguments: tr.Arguments}.Line())
	return nil
}

func printFamilies(cmd *cobra.Command, output string) error {
	families := translate.Families()
	if output != outputText {
		return writeStructured(cmd.OutOrStdout(), output, families)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FAMILY\tWINDOWS\tUNIX")
	for _, f := range families {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Family, f.Windows, f.Unix)
	}
	return w.Flush()
}

// Equivalent pairs a command name with its family and its name in the other
// dialect.
type Equivalent struct {
	Command    string           `json:"command" yaml:"command"`
	Family     translate.Family `json:"family" yaml:"family"`
	Equivalent string           `json:"equivalent" yaml:"equivalent"`
}

func printEquivalents(cmd *cobra.Command, output string, names []string) error {
	rows := make([]Equivalent, 0, len(names))
	for _, name := range names {
		family, ok := translate.Lookup(name)
		if !ok {
			return fmt.Errorf("%q is not a translated command", name)
		}
		other, ok := translate.Equivalent(name)
		if !ok {
			other = name
		}
		rows = append(rows, Equivalent{Command: name, Family: family, Equivalent: other})
	}

	if output != outputText {
		return writeStructured(cmd.OutOrStdout(), output, rows)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMMAND\tFAMILY\tEQUIVALENT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Command, r.Family, r.Equivalent)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("platform", "p", "", "target dialect ("+formatList(platform.Names())+"; default AUTO)")
	translateCmd.Flags().Bool("list", false, "list translated command families")
	translateCmd.Flags().String("server", "", "translate on a remote xcmd server")
	translateCmd.Flags().StringP("output", "o", outputText, "output format ("+formatList(outputFormats)+")")
}
