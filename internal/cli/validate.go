package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/recset/internal/config"
	"github.com/roach88/recset/internal/contract"
)

// Error codes reported by validate.
const (
	ErrCodeConfig   = "E_CONFIG"
	ErrCodeContract = "E_CONTRACT"
	ErrCodeRead     = "E_READ"
)

// FileResult is the validation outcome of one metadata file.
type FileResult struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Config string       `json:"config"`
	Files  []FileResult `json:"files,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ContractsDir string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [metadata.json...]",
		Short: "Validate configuration and metadata contracts",
		Long: `Validate the run configuration and, optionally, published metadata.

The configuration is loaded exactly as run loads it: defaults, the config
file, then RECSET_ environment variables. Each metadata file given is
checked against the built-in CUE contract, refined by --contracts or
output.contracts_dir when set.

Exit codes:
  0 - Everything is valid
  1 - A metadata file violates the contract
  2 - Configuration is invalid or a file cannot be read

Examples:
  recset validate
  recset validate data/datasets/v1.0/metadata_v1.0.json
  recset validate --contracts ./contracts metadata_v1.0.json --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ContractsDir, "contracts", "", "directory of CUE files refining the metadata contract")

	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if outErr := formatter.Error(ErrCodeConfig, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	formatter.VerboseLog("config ok: version %s, source %s, store %s", cfg.Version, cfg.Source.Kind, cfg.Store.Path)

	result := ValidationResult{Valid: true, Config: "ok"}
	if len(files) == 0 {
		return formatter.Success(validationText(result))
	}

	dir := opts.ContractsDir
	if dir == "" {
		dir = cfg.Output.ContractsDir
	}
	contracts, err := loadContracts(dir)
	if err != nil {
		if outErr := formatter.Error(ErrCodeContract, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to load contracts", err)
	}

	readFailed := false
	for _, file := range files {
		fr := FileResult{File: file, Valid: true}
		data, err := os.ReadFile(file)
		switch {
		case err != nil:
			fr.Valid, fr.Code, fr.Error = false, ErrCodeRead, err.Error()
			readFailed = true
		default:
			if err := contracts.CheckMetadata(data); err != nil {
				fr.Valid, fr.Code, fr.Error = false, contractCode(err), err.Error()
			}
		}
		formatter.VerboseLog("%s: valid=%t", file, fr.Valid)
		if !fr.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fr)
	}

	if result.Valid {
		return formatter.Success(validationText(result))
	}
	if err := formatter.Error(ErrCodeContract, "metadata validation failed", result.Files); err != nil {
		return err
	}
	if opts.Format != "json" {
		for _, fr := range result.Files {
			if !fr.Valid {
				fmt.Fprintf(formatter.Writer, "  %s: %s\n", fr.File, fr.Error)
			}
		}
	}
	if readFailed {
		return NewExitError(ExitCommandError, "failed to read metadata")
	}
	return NewExitError(ExitFailure, "metadata validation failed")
}

func loadContracts(dir string) (*contract.Set, error) {
	if dir == "" {
		return contract.Default()
	}
	return contract.Load(dir)
}

func contractCode(err error) string {
	var cErr *contract.Error
	if errors.As(err, &cErr) {
		return cErr.Code
	}
	return ErrCodeContract
}

// validationText renders a ValidationResult as text. Its JSON form is the
// result itself.
type validationText ValidationResult

func (v validationText) String() string {
	if len(v.Files) == 0 {
		return "✓ Config is valid"
	}
	return fmt.Sprintf("✓ Config is valid\n✓ %d metadata file(s) satisfy the contract", len(v.Files))
}
