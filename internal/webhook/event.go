package webhook

import "time"

type Kind string

const (
	KindPush Kind = "push"
	KindPing Kind = "ping"
)

// Event is a decoded webhook payload. Exactly one of *Push or *Ping.
type Event interface {
	Kind() Kind
	FullName() string
}

type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

type Author struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Author  Author `json:"author"`
}

type Push struct {
	Ref        string     `json:"ref"`
	Before     string     `json:"before"`
	After      string     `json:"after"`
	Deleted    bool       `json:"deleted"`
	Repository Repository `json:"repository"`
	HeadCommit *Commit    `json:"head_commit"`
}

func (p *Push) Kind() Kind {
	return KindPush
}

func (p *Push) FullName() string {
	return p.Repository.FullName
}

// CommitID is the id of the pushed head commit, or the after sha when the
// payload carries no head commit.
func (p *Push) CommitID() string {
	if p.HeadCommit != nil && p.HeadCommit.ID != "" {
		return p.HeadCommit.ID
	}
	return p.After
}

func (p *Push) CommitMessage() string {
	if p.HeadCommit == nil {
		return ""
	}
	return p.HeadCommit.Message
}

func (p *Push) AuthorName() string {
	if p.HeadCommit == nil {
		return ""
	}
	return p.HeadCommit.Author.Name
}

type HookConfig struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type Hook struct {
	ID     int64      `json:"id"`
	Type   string     `json:"type"`
	Events []string   `json:"events"`
	Config HookConfig `json:"config"`
}

type Ping struct {
	Zen        string     `json:"zen"`
	HookID     int64      `json:"hook_id"`
	Hook       Hook       `json:"hook"`
	Repository Repository `json:"repository"`
}

func (p *Ping) Kind() Kind {
	return KindPing
}

func (p *Ping) FullName() string {
	return p.Repository.FullName
}

// Delivery is one accepted webhook request waiting to be handled.
type Delivery struct {
	ID         string
	Event      Event
	ReceivedOn time.Time
}
