package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"admin-console/internal/models"
)

// RequestError identifies a failed backend call so the caller can show a
// retry affordance for the operation that failed.
type RequestError struct {
	Op     string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Client is a thin HTTP wrapper over the SnoRelax backend REST surface.
// Every call carries a bounded timeout through the underlying http.Client,
// so no operation is ever left pending indefinitely.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New constructs a backend client. timeout bounds every request including
// the group history seed fetch.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken adopts the opaque bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &RequestError{Op: op, Status: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Err: err}
	}
	return nil
}

// LoginResult is the identity and opaque token issued by the backend.
type LoginResult struct {
	AdminID  string `json:"adminId"`
	Nickname string `json:"nickname"`
	Token    string `json:"token"`
}

// Login authenticates the console operator and adopts the returned token
// for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	req := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/login", req, &result); err != nil {
		return LoginResult{}, err
	}
	c.SetToken(result.Token)
	return result, nil
}

// GroupMessages fetches the full current message list for a group. This is
// the seed fetch used on group selection and after reconnects.
func (c *Client) GroupMessages(ctx context.Context, groupID string) ([]models.MessageRecord, error) {
	var resp struct {
		Messages []models.MessageRecord `json:"messages"`
	}
	if err := c.do(ctx, "group messages", http.MethodGet, "/api/community/group/"+groupID+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// GroupMembers fetches the membership list for a group.
func (c *Client) GroupMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := c.do(ctx, "group members", http.MethodGet, "/api/community/group/"+groupID+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// UpdateMessage replaces a message body. The backend returns the updated record.
func (c *Client) UpdateMessage(ctx context.Context, messageID, body string) (models.MessageRecord, error) {
	var record models.MessageRecord
	req := map[string]string{"body": body}
	if err := c.do(ctx, "update message", http.MethodPut, "/api/community/message/"+messageID, req, &record); err != nil {
		return models.MessageRecord{}, err
	}
	return record, nil
}

// DeleteMessage removes a message for everyone. The backend fans the
// deletion out to channel subscribers.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, "delete message", http.MethodDelete, "/api/community/message/"+messageID, nil, nil)
}

// ClearGroupMessages removes every message in a group.
func (c *Client) ClearGroupMessages(ctx context.Context, groupID string) error {
	return c.do(ctx, "clear group messages", http.MethodDelete, "/api/community/group/"+groupID+"/messages", nil, nil)
}

// Groups lists all community groups.
func (c *Client) Groups(ctx context.Context) ([]models.Group, error) {
	var resp struct {
		Groups []models.Group `json:"groups"`
	}
	if err := c.do(ctx, "list groups", http.MethodGet, "/api/community/groups", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// CreateGroup creates a community group.
func (c *Client) CreateGroup(ctx context.Context, name, description string, isPrivate bool) (models.Group, error) {
	var group models.Group
	req := map[string]any{"name": name, "description": description, "isPrivate": isPrivate}
	if err := c.do(ctx, "create group", http.MethodPost, "/api/community/create", req, &group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// UpdateGroup changes a group's name and description.
func (c *Client) UpdateGroup(ctx context.Context, groupID, name, description string) (models.Group, error) {
	var group models.Group
	req := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, "update group", http.MethodPut, "/api/community/group/"+groupID, req, &group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// DeleteGroup removes a group.
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, "delete group", http.MethodDelete, "/api/community/"+groupID, nil, nil)
}

// AddMember joins a user to a group under the given nickname.
func (c *Client) AddMember(ctx context.Context, groupID, userID, nickname string) (models.GroupMember, error) {
	var member models.GroupMember
	req := map[string]string{"userId": userID, "nickname": nickname}
	if err := c.do(ctx, "add member", http.MethodPost, "/api/community/group/"+groupID+"/join", req, &member); err != nil {
		return models.GroupMember{}, err
	}
	return member, nil
}

// RemoveMember removes a user from a group.
func (c *Client) RemoveMember(ctx context.Context, groupID, userID string) error {
	req := map[string]string{"userId": userID}
	return c.do(ctx, "remove member", http.MethodDelete, "/api/community/group/"+groupID+"/member/remove", req, nil)
}

// Users lists application users.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, "list users", http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// User fetches a single user.
func (c *Client) User(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	if err := c.do(ctx, "get user", http.MethodGet, "/users/"+userID, nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// CreateUser creates a user.
func (c *Client) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var created models.User
	if err := c.do(ctx, "create user", http.MethodPost, "/users", user, &created); err != nil {
		return models.User{}, err
	}
	return created, nil
}

// UpdateUser updates a user.
func (c *Client) UpdateUser(ctx context.Context, userID string, user models.User) (models.User, error) {
	var updated models.User
	if err := c.do(ctx, "update user", http.MethodPut, "/users/"+userID, user, &updated); err != nil {
		return models.User{}, err
	}
	return updated, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, "delete user", http.MethodDelete, "/users/"+userID, nil, nil)
}

// Content lists wellness content entries.
func (c *Client) Content(ctx context.Context) ([]models.ContentItem, error) {
	var items []models.ContentItem
	if err := c.do(ctx, "list content", http.MethodGet, "/content", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateContent creates a content entry.
func (c *Client) CreateContent(ctx context.Context, item models.ContentItem) (models.ContentItem, error) {
	var created models.ContentItem
	if err := c.do(ctx, "create content", http.MethodPost, "/content", item, &created); err != nil {
		return models.ContentItem{}, err
	}
	return created, nil
}

// UpdateContent updates a content entry.
func (c *Client) UpdateContent(ctx context.Context, contentID string, item models.ContentItem) (models.ContentItem, error) {
	var updated models.ContentItem
	if err := c.do(ctx, "update content", http.MethodPut, "/content/"+contentID, item, &updated); err != nil {
		return models.ContentItem{}, err
	}
	return updated, nil
}

// DeleteContent removes a content entry.
func (c *Client) DeleteContent(ctx context.Context, contentID string) error {
	return c.do(ctx, "delete content", http.MethodDelete, "/content/"+contentID, nil, nil)
}

// Stats fetches the dashboard summary.
func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	if err := c.do(ctx, "stats", http.MethodGet, "/stats", nil, &stats); err != nil {
		return models.Stats{}, err
	}
	return stats, nil
}

// ChatStats fetches the chat activity series.
func (c *Client) ChatStats(ctx context.Context) (models.ChatStats, error) {
	var stats models.ChatStats
	if err := c.do(ctx, "chat stats", http.MethodGet, "/stats/chats", nil, &stats); err != nil {
		return models.ChatStats{}, err
	}
	return stats, nil
}
