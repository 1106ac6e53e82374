package api

import (
	"context"

	"github.com/feedhook/lemmy-rssbot/app/database"
	"github.com/feedhook/lemmy-rssbot/app/lemmy"
	"github.com/feedhook/lemmy-rssbot/app/tasks"
)

type CommunityResolverInterface interface {
	GetCommunityID(ctx context.Context, name string) (int64, error)
}

var _ CommunityResolverInterface = (*lemmy.Client)(nil)

// ResolverRegistry maps bot account names to their Lemmy clients, so
// community lookups run under the account that will post there.
type ResolverRegistry map[string]CommunityResolverInterface

type Handler struct {
	feedRepo   database.FeedRepository
	stateRepo  database.StateRepository
	ledgerRepo database.LedgerRepository
	resolvers  ResolverRegistry
	scheduler  tasks.TaskSchedulerInterface
}
