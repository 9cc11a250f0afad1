package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const googleScopes = "https://www.googleapis.com/auth/drive.readonly https://www.googleapis.com/auth/userinfo.email"

// googleListMimes narrows the Drive listing to what the ingest
// pipeline can turn into text.
var googleListMimes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/markdown",
	"text/csv",
	"application/json",
	"application/vnd.google-apps.document",
	"application/vnd.google-apps.spreadsheet",
	"application/vnd.google-apps.presentation",
}

type GoogleDrive struct {
	clientID     string
	clientSecret string
	authBase     string
	tokenURL     string
	apiBase      string
	userinfoURL  string
	httpClient   *http.Client
}

func NewGoogleDrive(clientID, clientSecret string) *GoogleDrive {
	return &GoogleDrive{
		clientID:     clientID,
		clientSecret: clientSecret,
		authBase:     "https://accounts.google.com/o/oauth2/v2/auth",
		tokenURL:     "https://oauth2.googleapis.com/token",
		apiBase:      "https://www.googleapis.com/drive/v3",
		userinfoURL:  "https://www.googleapis.com/oauth2/v2/userinfo",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleDrive) Name() string { return "google" }

func (g *GoogleDrive) AuthURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", g.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", googleScopes)
	q.Set("state", state)
	// Offline access plus forced consent, or Google stops returning a
	// refresh token after the first grant.
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return g.authBase + "?" + q.Encode()
}

func (g *GoogleDrive) Exchange(ctx context.Context, code, redirectURI string) (*Token, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	form.Set("redirect_uri", redirectURI)
	form.Set("grant_type", "authorization_code")
	return postTokenForm(ctx, g.httpClient, g.tokenURL, form)
}

func (g *GoogleDrive) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	return postTokenForm(ctx, g.httpClient, g.tokenURL, form)
}

func (g *GoogleDrive) ListFiles(ctx context.Context, accessToken string) ([]RemoteFile, error) {
	conditions := make([]string, 0, len(googleListMimes))
	for _, m := range googleListMimes {
		conditions = append(conditions, fmt.Sprintf("mimeType = '%s'", m))
	}
	query := "trashed = false and (" + strings.Join(conditions, " or ") + ")"

	var files []RemoteFile
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("q", query)
		q.Set("pageSize", "100")
		q.Set("fields", "nextPageToken,files(id,name,mimeType,size,modifiedTime)")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page struct {
			NextPageToken string `json:"nextPageToken"`
			Files         []struct {
				ID           string `json:"id"`
				Name         string `json:"name"`
				MimeType     string `json:"mimeType"`
				Size         string `json:"size"`
				ModifiedTime string `json:"modifiedTime"`
			} `json:"files"`
		}
		if err := getJSON(ctx, g.httpClient, g.apiBase+"/files?"+q.Encode(), accessToken, &page); err != nil {
			return nil, fmt.Errorf("list drive files failed: %w", err)
		}

		for _, f := range page.Files {
			size, _ := strconv.ParseInt(f.Size, 10, 64)
			modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
			files = append(files, RemoteFile{
				ID:         f.ID,
				Name:       f.Name,
				MimeType:   f.MimeType,
				Size:       size,
				ModifiedAt: modified,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return files, nil
}

func (g *GoogleDrive) Download(ctx context.Context, accessToken string, file RemoteFile) ([]byte, error) {
	var endpoint string
	if IsGoogleNative(file.MimeType) {
		endpoint = fmt.Sprintf("%s/files/%s/export?mimeType=%s",
			g.apiBase, url.PathEscape(file.ID), url.QueryEscape(googleExportMime(file.MimeType)))
	} else {
		endpoint = fmt.Sprintf("%s/files/%s?alt=media", g.apiBase, url.PathEscape(file.ID))
	}
	data, err := getBytes(ctx, g.httpClient, endpoint, accessToken)
	if err != nil {
		return nil, fmt.Errorf("download drive file %s failed: %w", file.ID, err)
	}
	return data, nil
}

func (g *GoogleDrive) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	var info struct {
		Email string `json:"email"`
	}
	if err := getJSON(ctx, g.httpClient, g.userinfoURL, accessToken, &info); err != nil {
		return "", fmt.Errorf("fetch google userinfo failed: %w", err)
	}
	return info.Email, nil
}

func googleExportMime(nativeMime string) string {
	if nativeMime == "application/vnd.google-apps.spreadsheet" {
		return "text/csv"
	}
	return "text/plain"
}
