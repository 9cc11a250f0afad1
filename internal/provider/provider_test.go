package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleAuthURL(t *testing.T) {
	g := NewGoogleDrive("cid", "csec")

	raw := g.AuthURL("state123", "http://localhost:8080/cb")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "state123", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "http://localhost:8080/cb", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "drive.readonly")
}

func TestOneDriveAuthURL(t *testing.T) {
	o := NewOneDrive("cid", "csec")

	parsed, err := url.Parse(o.AuthURL("s", "http://localhost/cb"))
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "query", q.Get("response_mode"))
	assert.Contains(t, q.Get("scope"), "Files.Read")
	assert.Contains(t, q.Get("scope"), "offline_access")
}

func TestGoogleExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "csec", r.PostForm.Get("client_secret"))
		fmt.Fprint(w, `{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	g := NewGoogleDrive("cid", "csec")
	g.tokenURL = srv.URL

	tok, err := g.Exchange(context.Background(), "abc", "http://cb")
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
	assert.Equal(t, 3600, tok.ExpiresIn)
}

func TestGoogleRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))
		fmt.Fprint(w, `{"access_token":"new-at","expires_in":3600}`)
	}))
	defer srv.Close()

	g := NewGoogleDrive("cid", "csec")
	g.tokenURL = srv.URL

	tok, err := g.Refresh(context.Background(), "old-rt")
	require.NoError(t, err)
	assert.Equal(t, "new-at", tok.AccessToken)
}

func TestExchangeRejectsMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	g := NewGoogleDrive("cid", "csec")
	g.tokenURL = srv.URL

	_, err := g.Exchange(context.Background(), "abc", "http://cb")
	assert.Error(t, err)
}

func TestGoogleListFilesPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("q"), "trashed = false")

		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"nextPageToken":"p2","files":[
				{"id":"a","name":"report.pdf","mimeType":"application/pdf","size":"123","modifiedTime":"2024-01-02T03:04:05Z"},
				{"id":"b","name":"Proposal","mimeType":"application/vnd.google-apps.document"}]}`)
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		fmt.Fprint(w, `{"files":[{"id":"c","name":"notes.txt","mimeType":"text/plain","size":"9"}]}`)
	}))
	defer srv.Close()

	g := NewGoogleDrive("cid", "csec")
	g.apiBase = srv.URL

	files, err := g.ListFiles(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, int64(123), files[0].Size)
	assert.Equal(t, 2024, files[0].ModifiedAt.Year())
	assert.True(t, IsGoogleNative(files[1].MimeType))
	assert.Equal(t, "notes.txt", files[2].Name)
}

func TestGoogleDownloadNativeExport(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, "exported text")
	}))
	defer srv.Close()

	g := NewGoogleDrive("cid", "csec")
	g.apiBase = srv.URL

	data, err := g.Download(context.Background(), "tok", RemoteFile{
		ID:       "doc1",
		MimeType: "application/vnd.google-apps.document",
	})
	require.NoError(t, err)
	assert.Equal(t, "exported text", string(data))
	assert.Equal(t, "/files/doc1/export", gotPath)
	assert.Contains(t, gotQuery, "mimeType=text%2Fplain")

	_, err = g.Download(context.Background(), "tok", RemoteFile{ID: "doc2", MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "/files/doc2", gotPath)
	assert.Contains(t, gotQuery, "alt=media")
}

func TestOneDriveListFilesRecursesFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/me/drive/root/children"):
			fmt.Fprint(w, `{"value":[
				{"id":"f1","name":"Docs","folder":{}},
				{"id":"a","name":"a.txt","size":5,"file":{"mimeType":"text/plain"},"lastModifiedDateTime":"2024-03-04T05:06:07Z"}]}`)
		case strings.HasPrefix(r.URL.Path, "/me/drive/items/f1/children"):
			fmt.Fprint(w, `{"value":[{"id":"b","name":"b.pdf","size":42,"file":{"mimeType":"application/pdf"}}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	o := NewOneDrive("cid", "csec")
	o.graphBase = srv.URL

	files, err := o.ListFiles(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "b.pdf", files[1].Name)
	assert.Equal(t, int64(42), files[1].Size)
}

func TestDownloadUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	o := NewOneDrive("cid", "csec")
	o.graphBase = srv.URL

	_, err := o.Download(context.Background(), "tok", RemoteFile{ID: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
