package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL+"/page")
	assert.True(t, ok)
	require.Len(t, chain, 1)
	assert.Equal(t, http.StatusOK, chain[0].StatusCode)
	assert.False(t, chain[0].Redirected)
	assert.Equal(t, "<html>ok</html>", string(chain[0].Body))
}

func TestResolveFollowsRelativeLocation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/b")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "c")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL+"/a")
	assert.True(t, ok)
	require.Len(t, chain, 3)
	assert.True(t, chain[0].Redirected)
	assert.True(t, chain[1].Redirected)
	assert.False(t, chain[2].Redirected)
	assert.Equal(t, "/c", chain.Last().URL.Path)
}

func TestResolveErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL)
	assert.False(t, ok)
	require.Len(t, chain, 1)
	assert.Equal(t, http.StatusNotFound, chain[0].StatusCode)
}

func TestResolveDetectsLoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL+"/a")
	assert.False(t, ok)
	assert.Len(t, chain, 2)
}

func TestResolveCapsChainLength(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", hits), http.StatusFound)
	}))
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL+"/start")
	assert.False(t, ok)
	assert.Len(t, chain, MaxHops)
	assert.Equal(t, MaxHops, hits)
}

func TestResolveExactlyMaxHopsIsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/hop/%d", &n)
		if n < MaxHops-1 {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n+1), http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL+"/hop/0")
	assert.True(t, ok)
	assert.Len(t, chain, MaxHops)
}

func TestResolveSharesCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		http.Redirect(w, r, "/content", http.StatusFound)
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ok, chain := New().Resolve(context.Background(), srv.URL+"/login")
	assert.True(t, ok)
	assert.Len(t, chain, 2)
}

func TestResolveUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	ok, chain := New(WithTimeout(time.Second)).Resolve(context.Background(), addr)
	assert.False(t, ok)
	assert.Empty(t, chain)
}

func TestResolveInvalidLink(t *testing.T) {
	ok, chain := New().Resolve(context.Background(), "not a url")
	assert.False(t, ok)
	assert.Empty(t, chain)
}

func TestResolveTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ok, _ := New(WithTimeout(50 * time.Millisecond)).Resolve(context.Background(), srv.URL)
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	a, _ := url.Parse("http://example.com")
	b, _ := url.Parse("http://example.com/")
	c, _ := url.Parse("http://example.com/#top")
	assert.Equal(t, Normalize(a), Normalize(b))
	assert.Equal(t, Normalize(b), Normalize(c))
}
