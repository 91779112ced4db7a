package internal

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/haatos/fisherman/internal/runner"
	"github.com/haatos/fisherman/internal/util"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

type NotificationOptions struct {
	Kind       string `yaml:"kind"        validate:"oneof=discord slack"`
	WebhookURL string `yaml:"webhook_url" validate:"required,url"`
	Channel    string `yaml:"channel"`
}

// Options are the defaults every repository falls back to.
type Options struct {
	SSHPrivateKey        string               `yaml:"ssh_private_key"        validate:"required"`
	RepoRoot             string               `yaml:"repo_root"              validate:"required"`
	BuildTool            string               `yaml:"build_tool"             validate:"required"`
	Port                 *uint16              `yaml:"port"`
	Secret               *string              `yaml:"secret"`
	KnownHosts           string               `yaml:"known_hosts"`
	Supervisor           string               `yaml:"supervisor"`
	QueueSize            int                  `yaml:"queue_size"             validate:"gte=0"`
	StageTimeout         time.Duration        `yaml:"stage_timeout"          validate:"gte=0"`
	HistoryRetentionDays int                  `yaml:"history_retention_days" validate:"gte=0"`
	Notifications        *NotificationOptions `yaml:"notifications"`
}

// SpecificOptions override Options for a single repository. A nil field means
// the repository does not override it.
type SpecificOptions struct {
	CodeRoot            *string          `yaml:"code_root"`
	Binaries            []string         `yaml:"binaries"`
	Secret              *string          `yaml:"secret"`
	Follow              *string          `yaml:"follow"`
	ShouldBuildBinaries *bool            `yaml:"should_build_binaries"`
	PreCommands         []runner.Command `yaml:"pre_commands"          validate:"dive"`
	PostCommands        []runner.Command `yaml:"post_commands"         validate:"dive"`
}

// Configuration is loaded once at startup and only read afterwards.
type Configuration struct {
	Default  Options                    `yaml:"default"`
	Specific map[string]SpecificOptions `yaml:"specific" validate:"dive"`
}

func LoadConfiguration(path string) (*Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("err reading configuration file: %w", err)
	}
	return ParseConfiguration(b)
}

func ParseConfiguration(b []byte) (*Configuration, error) {
	config := new(Configuration)
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("err parsing configuration: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Configuration) specific(repository string) (SpecificOptions, bool) {
	s, ok := c.Specific[repository]
	return s, ok
}

// ResolveSecret returns the repository's secret, then the global one, else nil.
func (c *Configuration) ResolveSecret(repository string) []byte {
	if s, ok := c.specific(repository); ok && s.Secret != nil {
		return []byte(*s.Secret)
	}
	if c.Default.Secret != nil {
		return []byte(*c.Default.Secret)
	}
	return nil
}

func (c *Configuration) ResolveBinaries(repository string) []string {
	if s, ok := c.specific(repository); ok && s.Binaries != nil {
		return s.Binaries
	}
	return []string{util.BaseName(repository)}
}

func (c *Configuration) ResolveCodeRoot(repository string) string {
	if s, ok := c.specific(repository); ok && s.CodeRoot != nil {
		return *s.CodeRoot
	}
	return ""
}

func (c *Configuration) ResolveFollowBranch(repository string) string {
	if s, ok := c.specific(repository); ok && s.Follow != nil {
		return *s.Follow
	}
	return DefaultFollowBranch
}

func (c *Configuration) ResolveShouldBuildBinaries(repository string) bool {
	if s, ok := c.specific(repository); ok && s.ShouldBuildBinaries != nil {
		return *s.ShouldBuildBinaries
	}
	return true
}

func (c *Configuration) ResolvePreCommands(repository string) []runner.Command {
	if s, ok := c.specific(repository); ok {
		return s.PreCommands
	}
	return nil
}

func (c *Configuration) ResolvePostCommands(repository string) []runner.Command {
	if s, ok := c.specific(repository); ok {
		return s.PostCommands
	}
	return nil
}

// RepositoryPath is the checkout of repository under the repository root.
func (c *Configuration) RepositoryPath(repository string) string {
	return filepath.Join(c.Default.RepoRoot, util.BaseName(repository))
}

func (c *Configuration) Port() uint16 {
	if c.Default.Port != nil {
		return *c.Default.Port
	}
	return DefaultPort
}

func (c *Configuration) Supervisor() string {
	if c.Default.Supervisor != "" {
		return c.Default.Supervisor
	}
	return DefaultSupervisor
}

func (c *Configuration) QueueSize() int {
	if c.Default.QueueSize > 0 {
		return c.Default.QueueSize
	}
	return DefaultQueueSize
}

// StageTimeout is zero when stages may run indefinitely.
func (c *Configuration) StageTimeout() time.Duration {
	return c.Default.StageTimeout
}

func (c *Configuration) HistoryRetention() time.Duration {
	if c.Default.HistoryRetentionDays > 0 {
		return time.Duration(c.Default.HistoryRetentionDays) * 24 * time.Hour
	}
	return DefaultHistoryRetention
}

// Warning is a non-fatal problem found in the configuration at startup.
type Warning struct {
	Message string
}

func (w Warning) Error() string {
	return w.Message
}

// CheckForPotentialMistakes logs and returns likely configuration mistakes.
// None of them prevent startup.
func (c *Configuration) CheckForPotentialMistakes(log *zap.SugaredLogger) []Warning {
	var warnings []Warning
	warn := func(format string, args ...any) {
		w := Warning{Message: fmt.Sprintf(format, args...)}
		log.Warn(w.Message)
		warnings = append(warnings, w)
	}

	paths := []struct{ name, path string }{
		{"ssh_private_key", c.Default.SSHPrivateKey},
		{"repo_root", c.Default.RepoRoot},
		{"build_tool", c.Default.BuildTool},
	}
	for _, p := range paths {
		if exists, _ := util.PathExists(p.path); !exists {
			warn("%s path %s does not exist", p.name, p.path)
		}
	}

	if c.Default.KnownHosts != "" {
		if exists, _ := util.PathExists(c.Default.KnownHosts); !exists {
			warn("known_hosts path %s does not exist", c.Default.KnownHosts)
		}
	}

	if key, err := os.ReadFile(c.Default.SSHPrivateKey); err == nil {
		if _, err := ssh.ParseRawPrivateKey(key); err != nil {
			var passErr *ssh.PassphraseMissingError
			if errors.As(err, &passErr) {
				warn("ssh_private_key %s is passphrase protected, which is not supported", c.Default.SSHPrivateKey)
			} else {
				warn("ssh_private_key %s could not be parsed: %v", c.Default.SSHPrivateKey, err)
			}
		}
	}

	for _, repository := range slices.Sorted(maps.Keys(c.Specific)) {
		s := c.Specific[repository]
		if s.CodeRoot != nil && filepath.IsAbs(*s.CodeRoot) {
			warn(
				"code_root %s for %s is absolute, it must be relative to the repository",
				*s.CodeRoot, repository,
			)
		}
	}

	return warnings
}
