package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recset/internal/pipeline"
	"github.com/roach88/recset/internal/source"
	"github.com/roach88/recset/internal/stages"
)

// StageInfo describes one planned stage.
type StageInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
}

// NewStagesCommand creates the stages command.
func NewStagesCommand(rootOpts *RootOptions) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages in execution order",
		Long: `List every pipeline stage with the snapshots it reads and commits.

Stage names are accepted by run --from and --until.

Examples:
  recset stages
  recset stages --version 2.1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planned, err := pipeline.Plan(stages.Build(source.Static{}, stages.Params{Version: version}))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to plan pipeline", err)
			}
			infos := make([]StageInfo, len(planned))
			for i, st := range planned {
				infos[i] = StageInfo{
					Name:        st.Name,
					Description: st.Description,
					Inputs:      append([]string{}, st.Inputs...),
					Outputs:     append([]string{}, st.Outputs...),
				}
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: infos})
			}
			w := cmd.OutOrStdout()
			for i, info := range infos {
				fmt.Fprintf(w, "%2d. %-24s %s\n", i+1, info.Name, info.Description)
				if rootOpts.Verbose {
					if len(info.Inputs) > 0 {
						fmt.Fprintf(w, "      reads:   %s\n", strings.Join(info.Inputs, ", "))
					}
					fmt.Fprintf(w, "      commits: %s\n", strings.Join(info.Outputs, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "1.0", "dataset version used to name export snapshots")

	return cmd
}
