package git

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHUser = "git"

// authMethod returns public key authentication for ssh remotes and nil for
// every other transport (local paths in particular).
func (s *Synchronizer) authMethod(remoteURL, sshKeyPath string) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if ep.Protocol != "ssh" {
		return nil, nil
	}

	user := ep.User
	if user == "" {
		user = defaultSSHUser
	}
	keys, err := gitssh.NewPublicKeysFromFile(user, sshKeyPath, "")
	if err != nil {
		return nil, fmt.Errorf("load ssh key %s: %w", sshKeyPath, err)
	}

	if s.knownHosts != "" {
		callback, err := knownhosts.New(s.knownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", s.knownHosts, err)
		}
		keys.HostKeyCallback = callback
	}
	return keys, nil
}
