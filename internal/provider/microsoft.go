package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const microsoftScopes = "offline_access Files.Read User.Read"

type OneDrive struct {
	clientID     string
	clientSecret string
	authBase     string
	tokenURL     string
	graphBase    string
	httpClient   *http.Client
}

func NewOneDrive(clientID, clientSecret string) *OneDrive {
	return &OneDrive{
		clientID:     clientID,
		clientSecret: clientSecret,
		authBase:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		tokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		graphBase:    "https://graph.microsoft.com/v1.0",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OneDrive) Name() string { return "onedrive" }

func (o *OneDrive) AuthURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", o.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("response_mode", "query")
	q.Set("scope", microsoftScopes)
	q.Set("state", state)
	return o.authBase + "?" + q.Encode()
}

func (o *OneDrive) Exchange(ctx context.Context, code, redirectURI string) (*Token, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("redirect_uri", redirectURI)
	form.Set("grant_type", "authorization_code")
	form.Set("scope", microsoftScopes)
	return postTokenForm(ctx, o.httpClient, o.tokenURL, form)
}

func (o *OneDrive) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("scope", microsoftScopes)
	return postTokenForm(ctx, o.httpClient, o.tokenURL, form)
}

// ListFiles walks the drive breadth-first from the root. Folders are
// descended into, not returned.
func (o *OneDrive) ListFiles(ctx context.Context, accessToken string) ([]RemoteFile, error) {
	type driveItem struct {
		ID                   string `json:"id"`
		Name                 string `json:"name"`
		Size                 int64  `json:"size"`
		LastModifiedDateTime string `json:"lastModifiedDateTime"`
		File                 *struct {
			MimeType string `json:"mimeType"`
		} `json:"file"`
		Folder *struct{} `json:"folder"`
	}

	var files []RemoteFile
	pending := []string{o.graphBase + "/me/drive/root/children?$top=100&$select=id,name,size,file,folder,lastModifiedDateTime"}

	for len(pending) > 0 {
		endpoint := pending[0]
		pending = pending[1:]

		var page struct {
			NextLink string      `json:"@odata.nextLink"`
			Value    []driveItem `json:"value"`
		}
		if err := getJSON(ctx, o.httpClient, endpoint, accessToken, &page); err != nil {
			return nil, fmt.Errorf("list onedrive items failed: %w", err)
		}

		for _, item := range page.Value {
			if item.Folder != nil {
				pending = append(pending,
					fmt.Sprintf("%s/me/drive/items/%s/children?$top=100&$select=id,name,size,file,folder,lastModifiedDateTime",
						o.graphBase, url.PathEscape(item.ID)))
				continue
			}
			mimeType := ""
			if item.File != nil {
				mimeType = item.File.MimeType
			}
			modified, _ := time.Parse(time.RFC3339, item.LastModifiedDateTime)
			files = append(files, RemoteFile{
				ID:         item.ID,
				Name:       item.Name,
				MimeType:   mimeType,
				Size:       item.Size,
				ModifiedAt: modified,
			})
		}

		if page.NextLink != "" {
			pending = append(pending, page.NextLink)
		}
	}
	return files, nil
}

func (o *OneDrive) Download(ctx context.Context, accessToken string, file RemoteFile) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/me/drive/items/%s/content", o.graphBase, url.PathEscape(file.ID))
	data, err := getBytes(ctx, o.httpClient, endpoint, accessToken)
	if err != nil {
		return nil, fmt.Errorf("download onedrive file %s failed: %w", file.ID, err)
	}
	return data, nil
}

func (o *OneDrive) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := getJSON(ctx, o.httpClient, o.graphBase+"/me", accessToken, &me); err != nil {
		return "", fmt.Errorf("fetch graph profile failed: %w", err)
	}
	if me.Mail != "" {
		return me.Mail, nil
	}
	return me.UserPrincipalName, nil
}
