package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/haatos/fisherman/internal"
	"github.com/haatos/fisherman/internal/git"
	"github.com/haatos/fisherman/internal/notify"
	"github.com/haatos/fisherman/internal/runner"
	"github.com/haatos/fisherman/internal/store"
	"github.com/haatos/fisherman/internal/util"
	"github.com/haatos/fisherman/internal/webhook"
)

type Stage string

const (
	StageSync         Stage = "sync"
	StagePreCommands  Stage = "precommands"
	StageBuild        Stage = "build"
	StageRestart      Stage = "restart"
	StagePostCommands Stage = "postcommands"
)

type Syncer interface {
	Fetch(context.Context, string, string, string) (*git.FetchedCommit, error)
	Merge(string, string, *git.FetchedCommit) (*git.MergeResult, error)
}

type Runner interface {
	Run(context.Context, runner.Command, string) (int, error)
}

type EventRecorder interface {
	Record(context.Context, string, string, store.EventVariant, string)
}

// Outcome is the result of handling one delivery. Err is a *StageError when
// a deployment aborted.
type Outcome struct {
	Skipped bool
	Err     error
}

func (o Outcome) Success() bool {
	return o.Err == nil
}

func (o Outcome) Stage() Stage {
	var se *StageError
	if errors.As(o.Err, &se) {
		return se.Stage
	}
	return ""
}

type DeployService struct {
	config  *internal.Configuration
	syncer  Syncer
	runner  Runner
	history EventRecorder
	notify  notify.Func
	log     *zap.SugaredLogger
}

// NewDeployService returns the deployment orchestrator. notifyFn may be nil
// when no notification sink is configured.
func NewDeployService(
	config *internal.Configuration,
	syncer Syncer,
	commandRunner Runner,
	history EventRecorder,
	notifyFn notify.Func,
	log *zap.SugaredLogger,
) *DeployService {
	return &DeployService{
		config:  config,
		syncer:  syncer,
		runner:  commandRunner,
		history: history,
		notify:  notifyFn,
		log:     log,
	}
}

func (s *DeployService) Handle(ctx context.Context, d *webhook.Delivery) Outcome {
	switch event := d.Event.(type) {
	case *webhook.Push:
		return s.Deploy(ctx, d.ID, event)
	case *webhook.Ping:
		return s.Ping(ctx, d.ID, event)
	}
	return Outcome{Err: fmt.Errorf("unsupported event %T", d.Event)}
}

func (s *DeployService) Ping(ctx context.Context, deliveryID string, ping *webhook.Ping) Outcome {
	repository := ping.FullName()
	s.log.Infow("received ping",
		"repository", repository,
		"url", ping.Hook.Config.URL,
		"zen", ping.Zen,
	)
	s.history.Record(ctx, deliveryID, repository, store.VariantPing, ping.Hook.Config.URL)
	return Outcome{}
}

// Deploy runs the pipeline for push when it targets the followed branch.
// Stages run in order and the first failing stage aborts the rest.
func (s *DeployService) Deploy(ctx context.Context, deliveryID string, push *webhook.Push) Outcome {
	repository := push.FullName()
	follow := s.config.ResolveFollowBranch(repository)
	if push.Deleted || push.Ref != internal.BranchRefPrefix+follow {
		s.log.Infow("ignoring push",
			"repository", repository,
			"ref", push.Ref,
			"follow", follow,
			"deleted", push.Deleted,
		)
		return Outcome{Skipped: true}
	}

	if err := s.runPipeline(ctx, deliveryID, repository, follow); err != nil {
		s.log.Errorw("deployment failed", "repository", repository, "error", err)
		s.history.Record(ctx, deliveryID, repository, store.VariantFailure, err.Error())
		s.sendNotification(ctx, failureMessage(repository, push, err))
		return Outcome{Err: err}
	}

	message := successMessage(repository, push)
	s.log.Infow("deployment succeeded", "repository", repository, "commit", push.CommitID())
	s.history.Record(ctx, deliveryID, repository, store.VariantSuccess, message)
	s.sendNotification(ctx, message)
	return Outcome{}
}

func (s *DeployService) runPipeline(ctx context.Context, deliveryID, repository, follow string) error {
	repoPath := s.config.RepositoryPath(repository)

	if err := s.sync(ctx, deliveryID, repository, repoPath, follow); err != nil {
		return &StageError{Stage: StageSync, Err: err}
	}

	if err := s.runCommands(ctx, s.config.ResolvePreCommands(repository), repoPath); err != nil {
		return &StageError{Stage: StagePreCommands, Err: err}
	}

	if s.config.ResolveShouldBuildBinaries(repository) {
		binaries := s.config.ResolveBinaries(repository)
		codeRoot := filepath.Join(repoPath, s.config.ResolveCodeRoot(repository))

		for _, binary := range binaries {
			cmd := runner.Command{
				Program: s.config.Default.BuildTool,
				Args:    []string{"build", "--release", "--bin", binary},
			}
			if err := s.run(ctx, cmd, codeRoot); err != nil {
				return &StageError{Stage: StageBuild, Err: err}
			}
			s.history.Record(ctx, deliveryID, repository, store.VariantBuild, binary)
		}

		for _, binary := range binaries {
			if err := s.run(ctx, s.restartCommand(binary), repoPath); err != nil {
				return &StageError{Stage: StageRestart, Err: err}
			}
			s.history.Record(ctx, deliveryID, repository, store.VariantRestart, binary)
		}
	}

	if err := s.runCommands(ctx, s.config.ResolvePostCommands(repository), repoPath); err != nil {
		return &StageError{Stage: StagePostCommands, Err: err}
	}
	return nil
}

func (s *DeployService) sync(ctx context.Context, deliveryID, repository, repoPath, branch string) error {
	fetchCtx, cancel := s.withStageTimeout(ctx)
	defer cancel()
	fetched, err := s.syncer.Fetch(fetchCtx, repoPath, branch, s.config.Default.SSHPrivateKey)
	if err != nil {
		return err
	}

	result, err := s.syncer.Merge(repoPath, branch, fetched)
	if err != nil {
		return err
	}
	s.history.Record(ctx, deliveryID, repository, store.VariantPull,
		fmt.Sprintf("%s %s", result.Analysis, util.ShortID(result.Head.String())),
	)

	if result.HasConflicts() {
		s.log.Warnw("merge left conflicts for manual resolution",
			"repository", repository,
			"conflicts", result.Conflicts,
		)
		s.history.Record(ctx, deliveryID, repository, store.VariantWarning,
			"merge conflicts in "+strings.Join(result.Conflicts, ", "),
		)
	}
	return nil
}

func (s *DeployService) runCommands(ctx context.Context, commands []runner.Command, base string) error {
	for _, cmd := range commands {
		if err := s.run(ctx, cmd, base); err != nil {
			return err
		}
	}
	return nil
}

func (s *DeployService) run(ctx context.Context, cmd runner.Command, base string) error {
	runCtx, cancel := s.withStageTimeout(ctx)
	defer cancel()

	code, err := s.runner.Run(runCtx, cmd, base)
	if err != nil {
		return fmt.Errorf("err running `%s`: %w", cmd, err)
	}
	if code != 0 {
		return &ProcessError{Command: cmd.String(), ExitCode: code}
	}
	return nil
}

// restartCommand supports supervisors given with leading arguments, e.g.
// "sudo supervisorctl".
func (s *DeployService) restartCommand(binary string) runner.Command {
	fields := strings.Fields(s.config.Supervisor())
	if len(fields) == 0 {
		fields = []string{internal.DefaultSupervisor}
	}
	args := append(fields[1:len(fields):len(fields)], "restart", binary)
	return runner.Command{Program: fields[0], Args: args}
}

func (s *DeployService) withStageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.config.StageTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (s *DeployService) sendNotification(ctx context.Context, message string) {
	if s.notify == nil {
		return
	}
	var target string
	if n := s.config.Default.Notifications; n != nil {
		target = n.Channel
	}
	if err := s.notify(ctx, target, message); err != nil {
		s.log.Warnw("err sending notification", "error", err)
	}
}

func successMessage(repository string, push *webhook.Push) string {
	return fmt.Sprintf(
		"Deployed %s at %s: %s (%s)",
		repository,
		util.ShortID(push.CommitID()),
		util.FirstLine(push.CommitMessage()),
		push.AuthorName(),
	)
}

func failureMessage(repository string, push *webhook.Push, err error) string {
	return fmt.Sprintf(
		"Deployment of %s at %s failed: %v",
		repository,
		util.ShortID(push.CommitID()),
		err,
	)
}
