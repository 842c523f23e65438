package stocktwits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockread/pkg/httputil"
	"github.com/wonny/stockread/pkg/logger"
)

func msg(body string) message {
	m := message{Body: body, CreatedAt: "2026-03-03T14:00:00Z"}
	m.User.Username = "trader"
	return m
}

func TestFilterMessages(t *testing.T) {
	msgs := []message{
		msg("Earnings look strong this quarter"),
		msg("short"),
		msg("nospacesbutlongenoughtopass"),
		msg("$A $B $C $D all mooning today"),
		msg("Guidance raised, holding my $ACME shares"),
		msg("This one is beyond the limit"),
	}

	posts := filterMessages(msgs, 5)
	require.Len(t, posts, 2)
	assert.Equal(t, "Earnings look strong this quarter", posts[0].Body)
	assert.Equal(t, "trader", posts[0].User)
	assert.False(t, posts[0].CreatedAt.IsZero())
	assert.Equal(t, "Guidance raised, holding my $ACME shares", posts[1].Body)
}

func TestPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/streams/symbol/ACME.json":
			w.Write([]byte(`{"messages":[{"id":1,"body":"Bought more on the dip today","created_at":"2026-03-03T14:00:00Z","user":{"username":"bob"}}]}`))
		case "/streams/symbol/BUSY.json":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(httputil.New(logger.Nop()).DisableRetry(), logger.Nop(), server.URL)

	posts, err := c.Posts(context.Background(), "acme", 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "bob", posts[0].User)

	posts, err = c.Posts(context.Background(), "BUSY", 5)
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = c.Posts(context.Background(), "NOPE", 5)
	assert.Error(t, err)
}
