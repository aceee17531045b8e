package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(logger.Nop(), Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "whatsapp:+14155238886",
		BaseURL:    baseURL,
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(logger.Nop(), Config{AuthToken: "x", From: "whatsapp:+1"})
	require.Error(t, err)
	_, err = New(logger.Nop(), Config{AccountSID: "AC", From: "whatsapp:+1"})
	require.Error(t, err)
	_, err = New(nil, Config{AccountSID: "AC", AuthToken: "x", From: "whatsapp:+1"})
	require.Error(t, err)
}

func TestSend_PostsForm(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "AC123", user)
		require.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Send(context.Background(), "whatsapp:+919876543210", "hello"))
	require.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	require.Equal(t, "whatsapp:+919876543210", gotTo)
	require.Equal(t, "whatsapp:+14155238886", gotFrom)
	require.Equal(t, "hello", gotBody)
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL).Send(context.Background(), "whatsapp:+1", "hi")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	require.Contains(t, httpErr.Error(), "21211")
}

func TestSend_SplitsLongBody(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		require.LessOrEqual(t, len([]rune(r.PostForm.Get("Body"))), MaxBodyLength)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	body := strings.Repeat("line of invoice text\n", 200)
	require.NoError(t, newTestClient(t, srv.URL).Send(context.Background(), "whatsapp:+1", body))
	require.Equal(t, len(SplitBody(body, MaxBodyLength)), calls)
	require.Greater(t, calls, 1)
}

func TestDownloadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, ok := r.BasicAuth()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS-data"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	data, ct, err := c.DownloadMedia(context.Background(), srv.URL+"/media/ME1")
	require.NoError(t, err)
	require.Equal(t, "audio/ogg", ct)
	require.Equal(t, []byte("OggS-data"), data)
}

func TestDownloadMedia_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{AccountSID: "AC", AuthToken: "t", From: "whatsapp:+1", MaxMediaBytes: 10})
	require.NoError(t, err)
	_, _, err = c.DownloadMedia(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestSplitBody(t *testing.T) {
	require.Equal(t, []string{"short"}, SplitBody("short", 10))

	parts := SplitBody("aaaa\nbbbb\ncccc", 10)
	require.Equal(t, []string{"aaaa\nbbbb", "cccc"}, parts)

	parts = SplitBody(strings.Repeat("x", 25), 10)
	require.Len(t, parts, 3)
	require.Equal(t, strings.Repeat("x", 25), strings.Join(parts, ""))
}
