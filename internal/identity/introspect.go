package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// introspector asks the identity provider who a token belongs to.
type introspector struct {
	httpClient *http.Client
	url        string
	serviceKey string
}

type userResp struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (i *introspector) user(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if i.serviceKey != "" {
		req.Header.Set("apikey", i.serviceKey)
	}

	res, err := i.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection failed: %s", res.Status)
	}

	var u userResp
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return nil, err
	}
	if strings.TrimSpace(u.ID) == "" {
		return nil, errors.New("introspection returned no user")
	}
	return &Principal{UserID: u.ID, Email: u.Email}, nil
}
