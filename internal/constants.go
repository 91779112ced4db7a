package internal

import "time"

const (
	DotEnvPath        = "./.env"
	MigrationsDir     = "migrations"
	DBTimestampLayout = "2006-01-02 15:04:05"
	BranchRefPrefix   = "refs/heads/"
	EventTypeHeader   = "X-GitHub-Event"
	SignatureHeader   = "X-Hub-Signature-256"
	DeliveryIDHeader  = "X-GitHub-Delivery"

	DefaultPort             uint16 = 5000
	DefaultFollowBranch            = "master"
	DefaultSupervisor              = "supervisorctl"
	DefaultQueueSize               = 64
	DefaultHistoryRetention        = 30 * 24 * time.Hour
	DefaultEventLimit              = 50
	MaxEventLimit                  = 500
	MaxPayloadSize                 = "25M"
)
