package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JeredArc/jeredmgr/internal/backend"
	"github.com/JeredArc/jeredmgr/internal/errors"
	"github.com/JeredArc/jeredmgr/internal/project"
)

var addCmd = &cobra.Command{
	Use:   "add <id> <type> <path>",
	Short: "Register a new project",
	Long: `Register a project record. The project starts disabled; run
"jeredmgr enable" to install its backend linkage.

Types: container (docker-compose stack), service (systemd unit),
scripts (plain script bundle).

Examples:
  # A compose stack already checked out locally
  jeredmgr add blog container ~/stacks/blog

  # A systemd service pulled from a private repository
  jeredmgr add api service ~/services/api --repo https://github.com/me/api --auth global

  # One project inside a larger monorepo
  jeredmgr add worker scripts ~/projects/worker --repo https://github.com/me/mono --subpath worker`,
	Args: cobra.ExactArgs(3),
	RunE: runAdd,
}

var (
	addRepo    string
	addSubPath string
	addAuth    string
	addToken   string
)

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVar(&addRepo, "repo", "", "Remote git repository URL")
	addCmd.Flags().StringVar(&addSubPath, "subpath", "", "Subdirectory of the repository holding the project")
	addCmd.Flags().StringVar(&addAuth, "auth", "none", "Credential mode for git operations (none/global/local)")
	addCmd.Flags().StringVar(&addToken, "token", "", "Project-local access token (implies --auth local)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	orch, cleanup, err := newOrchestrator()
	if err != nil {
		return err
	}
	defer cleanup()

	id, typeTag, path := args[0], args[1], args[2]

	recordType := project.ParseType(typeTag)
	if recordType == project.TypeUnknown {
		return errors.NewValidationError("unknown project type").
			WithField("type").
			WithValue(typeTag).
			WithCause(fmt.Errorf("valid types: %s", strings.Join(project.KnownTypes(), ", ")))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolving project path")
	}

	authMode := project.ParseAuthMode(addAuth)
	if addToken != "" {
		authMode = project.AuthLocal
	}
	if authMode != project.AuthNone && addRepo == "" {
		return errors.NewValidationError("credential mode set without a repository").
			WithField("auth")
	}

	r := &project.Record{
		ID:        id,
		Type:      recordType,
		RepoURL:   addRepo,
		SubPath:   addSubPath,
		AuthMode:  authMode,
		AuthToken: addToken,
		Path:      absPath,
	}
	if err := orch.Store().Create(r); err != nil {
		return err
	}

	// A local-only project whose directory is missing can never start;
	// one that will be cloned on enable is fine.
	if addRepo == "" {
		if _, err := os.Stat(absPath); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: project path %s does not exist\n", absPath)
		} else if recordType == project.TypeService && !backend.UnitFileExists(absPath, id) {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: no systemd unit file found in %s\n", absPath)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s, disabled)\n", id, recordType)
	return nil
}
