// Package gdrive uploads exported CSVs to Google Drive as Sheets.
//
// Setup: create a GCP project, create OAuth tokens, and save the OAuth
// credentials to credentials.json. The first upload opens a browser for the
// authorization code and caches the token in token.json.
//
//	https://developers.google.com/drive/api/v3/quickstart/go
package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Uploader holds the OAuth file locations.
type Uploader struct {
	CredentialsFile string
	TokenFile       string
}

// NewUploader returns an Uploader using the conventional file names in the
// working directory.
func NewUploader() *Uploader {
	return &Uploader{
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
	}
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	tok := &oauth2.Token{}

	err = json.NewDecoder(f).Decode(tok)

	return tok, err
}

// saveToken saves a token to a file path.
func saveToken(path string, token *oauth2.Token) error {
	fmt.Printf("Saving credential file to: %s\n", path)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %v", err)
	}

	defer f.Close()

	json.NewEncoder(f).Encode(token)

	return nil
}

// getTokenFromWeb requests a token from the web, then returns the retrieved token.
func getTokenFromWeb(config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("Opening authorization link in your browser: \n%v\n\n", authURL)
	browser.OpenURL(authURL)

	fmt.Println("Enter the authorization code:")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code %v", err)
	}

	tok, err := config.Exchange(context.TODO(), authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web %v", err)
	}

	return tok, nil
}

// getClient retrieves a token, saves the token, then returns the generated client.
func (u *Uploader) getClient(config *oauth2.Config) (*http.Client, error) {
	// TokenFile stores the user's access and refresh tokens. If it does not
	// exist or has expired we will create it.
	tok, err := tokenFromFile(u.TokenFile)
	if err != nil || tok.Expiry.Before(time.Now()) {
		tok, err = getTokenFromWeb(config)
		if err != nil {
			return nil, err
		}
		err = saveToken(u.TokenFile, tok)
		if err != nil {
			return nil, err
		}
	}

	return config.Client(context.Background(), tok), nil
}

// service returns a Drive service that can be used to access Drive assets.
func (u *Uploader) service() (*drive.Service, error) {
	ctx := context.Background()

	b, err := os.ReadFile(u.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %v", err)
	}

	// If you modify these scopes, delete the old token file.
	config, err := google.ConfigFromJSON(b, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %v", err)
	}

	client, err := u.getClient(config)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))

	return srv, err
}

// CreateSheet uploads a CSV file as a Google Sheet in Google Drive.
func (u *Uploader) CreateSheet(name string, parentID string) (*drive.File, error) {
	srv, err := u.service()
	if err != nil {
		return nil, err
	}

	content, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %v", name, err)
	}
	defer content.Close()

	f := &drive.File{
		MimeType: "application/vnd.google-apps.spreadsheet",
		Name:     name,
		Parents:  []string{parentID},
	}

	file, err := srv.Files.Create(f).Media(content, googleapi.ContentType("text/csv")).Do()
	if err != nil {
		return nil, fmt.Errorf("could not create file: %v", err)
	}

	return file, nil
}
