package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/roomchat/internal/app"
	"github.com/dkeye/roomchat/internal/assistant"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = domain.User{ID: 1, Name: "alice"}
	bot   = domain.User{ID: 4, Name: domain.AssistantName}
)

type fakeStore struct {
	mu     sync.Mutex
	msgs   []domain.Message
	failOn string
}

func (f *fakeStore) CreateMessage(_ context.Context, room domain.RoomID, author domain.UserID, content string) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && content == f.failOn {
		return domain.Message{}, errors.New("disk full")
	}
	name := alice.Name
	if author == bot.ID {
		name = bot.Name
	}
	m := domain.Message{
		ID:        int64(len(f.msgs) + 1),
		RoomID:    room,
		Content:   content,
		CreatedAt: time.Now(),
		User:      domain.Identity{ID: author, Name: name},
	}
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeStore) RecentMessages(_ context.Context, room domain.RoomID, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.msgs {
		if m.RoomID == room {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []domain.Message
}

func (p *fakePublisher) PublishMessage(_ context.Context, m domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakePublisher) contents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sent))
	for _, m := range p.sent {
		out = append(out, m.Content)
	}
	return out
}

func TestPostMessage_PersistsThenPublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	s := NewService(store, pub, Options{})

	msg, err := s.PostMessage(context.Background(), 7, alice.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, domain.RoomID(7), msg.RoomID)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, msg, pub.sent[0])
}

func TestPostMessage_StoreFailureDoesNotPublish(t *testing.T) {
	store := &fakeStore{failOn: "boom"}
	pub := &fakePublisher{}
	s := NewService(store, pub, Options{})

	_, err := s.PostMessage(context.Background(), 7, alice.ID, "boom")
	require.Error(t, err)
	assert.Empty(t, pub.sent)
}

func TestPostMessage_Validation(t *testing.T) {
	s := NewService(&fakeStore{}, &fakePublisher{}, Options{})
	ctx := context.Background()

	_, err := s.PostMessage(ctx, 7, alice.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = s.PostMessage(ctx, 7, alice.ID, strings.Repeat("x", MaxMessageLen+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestPostMessage_RateLimited(t *testing.T) {
	s := NewService(&fakeStore{}, &fakePublisher{}, Options{
		Limiter: app.NewRateLimiter[domain.UserID](2, time.Minute),
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.PostMessage(ctx, 7, alice.ID, "hi")
		require.NoError(t, err)
	}
	_, err := s.PostMessage(ctx, 7, alice.ID, "hi")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = s.PostMessage(ctx, 7, 2, "other user")
	assert.NoError(t, err)
}

func TestPostMessage_AssistantReplies(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := assistant.NewMockGenerator(ctrl)
	store := &fakeStore{}
	pub := &fakePublisher{}
	s := NewService(store, pub, Options{Generator: gen, Assistant: bot, Fallback: "sorry"})

	_, err := store.CreateMessage(context.Background(), 7, alice.ID, "earlier")
	require.NoError(t, err)

	gen.EXPECT().
		Generate(gomock.Any(), gomock.Any(), "what is 2+2?").
		DoAndReturn(func(_ context.Context, history []domain.Message, _ string) (string, error) {
			if assert.Len(t, history, 1) {
				assert.Equal(t, "earlier", history[0].Content)
			}
			return "4", nil
		})

	_, err = s.PostMessage(context.Background(), 7, alice.ID, "@assistant what is 2+2?")
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, []string{"@assistant what is 2+2?", "4"}, pub.contents())
	assert.Equal(t, bot.ID, pub.sent[1].User.ID)
}

func TestPostMessage_AssistantFailureUsesFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := assistant.NewMockGenerator(ctrl)
	pub := &fakePublisher{}
	s := NewService(&fakeStore{}, pub, Options{Generator: gen, Assistant: bot, Fallback: "sorry"})

	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("upstream down"))

	_, err := s.PostMessage(context.Background(), 7, alice.ID, "@assistant hi")
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, []string{"@assistant hi", "sorry"}, pub.contents())
}

func TestPostMessage_AssistantFailureWithoutFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := assistant.NewMockGenerator(ctrl)
	pub := &fakePublisher{}
	s := NewService(&fakeStore{}, pub, Options{Generator: gen, Assistant: bot})

	gen.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("upstream down"))

	_, err := s.PostMessage(context.Background(), 7, alice.ID, "@assistant hi")
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, []string{"@assistant hi"}, pub.contents())
}

func TestPostMessage_ReplySurvivesRequestCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := assistant.NewMockGenerator(ctrl)
	pub := &fakePublisher{}
	s := NewService(&fakeStore{}, pub, Options{Generator: gen, Assistant: bot})

	release := make(chan struct{})
	gen.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []domain.Message, _ string) (string, error) {
			<-release
			return "late", ctx.Err()
		})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.PostMessage(ctx, 7, alice.ID, "@assistant hi")
	require.NoError(t, err)
	cancel()
	close(release)
	s.Wait()

	assert.Equal(t, []string{"@assistant hi", "late"}, pub.contents())
}

func TestPostMessage_NoMentionNoGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := assistant.NewMockGenerator(ctrl)
	pub := &fakePublisher{}
	s := NewService(&fakeStore{}, pub, Options{Generator: gen, Assistant: bot})

	_, err := s.PostMessage(context.Background(), 7, alice.ID, "just chatting")
	require.NoError(t, err)
	s.Wait()
	assert.Len(t, pub.sent, 1)
}

func TestPostMessage_AssistantDoesNotAnswerItself(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := assistant.NewMockGenerator(ctrl)
	s := NewService(&fakeStore{}, &fakePublisher{}, Options{Generator: gen, Assistant: bot})

	_, err := s.PostMessage(context.Background(), 7, bot.ID, "I am @assistant")
	require.NoError(t, err)
	s.Wait()
}
