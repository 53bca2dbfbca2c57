package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const GraphMeURL = "https://graph.microsoft.com/v1.0/me"

var parenthesized = regexp.MustCompile(`\([^)]*\)`)

// Profile is the subset of the Microsoft Graph user resource we display.
type Profile struct {
	GivenName         string `json:"givenName"`
	DisplayName       string `json:"displayName"`
	Surname           string `json:"surname"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// FetchProfile reads the signed-in user's profile. client must add the
// bearer token, as the one returned by Provider.Client does.
func FetchProfile(ctx context.Context, client *http.Client, meURL string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meURL, nil)
	if err != nil {
		return nil, &Error{Code: CodeProfileUnavailable, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Code: CodeProfileUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Code: CodeProfileUnavailable, Err: fmt.Errorf("graph returned status %d", resp.StatusCode)}
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &Error{Code: CodeProfileUnavailable, Err: fmt.Errorf("decoding profile: %w", err)}
	}
	return &p, nil
}

// FirstName is the word a greeting should use: the given name, else the
// display name, with parenthesized notes removed and only the first word kept.
// Falls back to the local part of the mail address.
func (p Profile) FirstName() string {
	for _, candidate := range []string{p.GivenName, p.DisplayName} {
		words := strings.Fields(parenthesized.ReplaceAllString(candidate, " "))
		if len(words) > 0 {
			return capitalize(words[0])
		}
	}
	for _, addr := range []string{p.Mail, p.UserPrincipalName} {
		if local, _, ok := strings.Cut(addr, "@"); ok && local != "" {
			return capitalize(local)
		}
	}
	return ""
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
