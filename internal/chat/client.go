package chat

import "context"

// Sender posts content on behalf of the bot.
type Sender interface {
	Post(ctx context.Context, p Post) (Post, error)
	// Reply answers p in its thread.
	Reply(ctx context.Context, p Post, message string) (Post, error)
	React(ctx context.Context, p Post, emoji string) error
	Edit(ctx context.Context, postID, message string) (Post, error)
}

type Channeler interface {
	CreatePrivateChannel(ctx context.Context, teamID, name string) (Channel, error)
	AddChannelMember(ctx context.Context, channelID, userID string) error
	ArchiveChannel(ctx context.Context, channelID string) error
}

type Getter interface {
	Me(ctx context.Context) (User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]User, error)
}

// Notifier reaches the operators rather than the chat users.
type Notifier interface {
	StartupNotify(ctx context.Context, message string) error
	DebugNotify(ctx context.Context, message string) error
	ErrorNotify(ctx context.Context, message string) error
	RequiredActionNotify(ctx context.Context, message string) error
}

// Client is the full outbound capability. Implementations must be safe for
// concurrent use: the dispatcher and the scheduler share one instance.
type Client interface {
	Sender
	Channeler
	Getter
	Notifier
}

// Listener pushes inbound events until ctx is done or the transport fails.
type Listener interface {
	Listen(ctx context.Context, events chan<- Event) error
}
