// Package promote copies verified backup artifacts from an agent's
// staging area into the validated tree.
package promote

import (
	"context"
	"fmt"
	"path"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/layout"
)

// Error describes a failed promotion.
type Error struct {
	Database string
	Staged   string
	Final    string
	Err      error
}

func (e *Error) Error() string {
	if e.Final != "" {
		return fmt.Sprintf("promote %s: %s -> %s: %v", e.Database, e.Staged, e.Final, e.Err)
	}
	return fmt.Sprintf("promote %s: %s: %v", e.Database, e.Staged, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Promoter moves artifacts between the staging and validated roots.
type Promoter struct {
	staging   *backupfs.Gateway
	validated *backupfs.Gateway
}

// New creates a promoter over the two storage roots.
func New(staging, validated *backupfs.Gateway) *Promoter {
	return &Promoter{staging: staging, validated: validated}
}

// Promote copies the staged artifact of a job into its final location
// under the validated root and returns the absolute final path. The
// staged file is left in place; re-promoting the same artifact
// overwrites the previous copy, so the operation is idempotent.
func (p *Promoter) Promote(ctx context.Context, job *models.ExpectedJob, stagedFileName string) (string, error) {
	agent := job.AgentID()

	stagedRel, err := layout.StagedPath(agent, stagedFileName)
	if err != nil {
		return "", &Error{Database: job.DatabaseName, Staged: stagedFileName, Err: err}
	}

	finalRel, err := layout.PromotionPath(job.Coordinates(), job.FinalStorageTemplate, stagedFileName)
	if err != nil {
		return "", &Error{Database: job.DatabaseName, Staged: stagedFileName, Err: err}
	}

	src, err := p.staging.Abs(stagedRel)
	if err != nil {
		return "", &Error{Database: job.DatabaseName, Staged: stagedRel, Final: finalRel, Err: err}
	}

	if err := p.validated.EnsureDir(ctx, path.Dir(finalRel)); err != nil {
		return "", &Error{Database: job.DatabaseName, Staged: stagedRel, Final: finalRel, Err: err}
	}

	if err := p.validated.Copy(ctx, src, finalRel); err != nil {
		return "", &Error{Database: job.DatabaseName, Staged: stagedRel, Final: finalRel, Err: err}
	}

	final, err := p.validated.Abs(finalRel)
	if err != nil {
		return "", &Error{Database: job.DatabaseName, Staged: stagedRel, Final: finalRel, Err: err}
	}

	logger.Info("Artifact promoted",
		logger.Database(job.DatabaseName),
		logger.Agent(agent.String()),
		logger.NewPath(final))
	return final, nil
}
