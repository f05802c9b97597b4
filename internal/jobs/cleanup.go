package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/repository"
)

// CleanupJob periodically removes mirrored rows and credentials whose
// session config is gone, sweeping up anything a destroy missed.
type CleanupJob struct {
	chatRepo       repository.ChatRepository
	contactRepo    repository.ContactRepository
	groupRepo      repository.GroupRepository
	messageRepo    repository.MessageRepository
	credentialRepo repository.CredentialRepository
	interval       time.Duration
	done           chan struct{}
}

func NewCleanupJob(
	chatRepo repository.ChatRepository,
	contactRepo repository.ContactRepository,
	groupRepo repository.GroupRepository,
	messageRepo repository.MessageRepository,
	credentialRepo repository.CredentialRepository,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		chatRepo:       chatRepo,
		contactRepo:    contactRepo,
		groupRepo:      groupRepo,
		messageRepo:    messageRepo,
		credentialRepo: credentialRepo,
		interval:       interval,
		done:           make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "orphan messages", j.messageRepo.DeleteOrphans)
	j.runCleanup(ctx, "orphan chats", j.chatRepo.DeleteOrphans)
	j.runCleanup(ctx, "orphan contacts", j.contactRepo.DeleteOrphans)
	j.runCleanup(ctx, "orphan groups", j.groupRepo.DeleteOrphans)
	j.runCleanup(ctx, "orphan credentials", j.credentialRepo.DeleteOrphans)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
