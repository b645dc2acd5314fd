package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"admin-console/internal/backend"
	"admin-console/internal/channel"
	"admin-console/internal/chatsync"
	"admin-console/internal/directory"
	"admin-console/internal/models"
	"admin-console/internal/sessions"
)

type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) Login(ctx context.Context, email, password string) (backend.LoginResult, error) {
	args := m.Called(ctx, email, password)
	var result backend.LoginResult
	if val := args.Get(0); val != nil {
		result = val.(backend.LoginResult)
	}
	return result, args.Error(1)
}

func (m *BackendMock) GroupMessages(ctx context.Context, groupID string) ([]models.MessageRecord, error) {
	args := m.Called(ctx, groupID)
	var records []models.MessageRecord
	if val := args.Get(0); val != nil {
		records = val.([]models.MessageRecord)
	}
	return records, args.Error(1)
}

func (m *BackendMock) GroupMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	args := m.Called(ctx, groupID)
	var members []models.GroupMember
	if val := args.Get(0); val != nil {
		members = val.([]models.GroupMember)
	}
	return members, args.Error(1)
}

func (m *BackendMock) UpdateMessage(ctx context.Context, messageID, body string) (models.MessageRecord, error) {
	args := m.Called(ctx, messageID, body)
	var record models.MessageRecord
	if val := args.Get(0); val != nil {
		record = val.(models.MessageRecord)
	}
	return record, args.Error(1)
}

func (m *BackendMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *BackendMock) ClearGroupMessages(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *BackendMock) Groups(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *BackendMock) CreateGroup(ctx context.Context, name, description string, isPrivate bool) (models.Group, error) {
	args := m.Called(ctx, name, description, isPrivate)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *BackendMock) UpdateGroup(ctx context.Context, groupID, name, description string) (models.Group, error) {
	args := m.Called(ctx, groupID, name, description)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *BackendMock) DeleteGroup(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *BackendMock) AddMember(ctx context.Context, groupID, userID, nickname string) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID, nickname)
	var member models.GroupMember
	if val := args.Get(0); val != nil {
		member = val.(models.GroupMember)
	}
	return member, args.Error(1)
}

func (m *BackendMock) RemoveMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *BackendMock) Users(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *BackendMock) User(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *BackendMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *BackendMock) UpdateUser(ctx context.Context, userID string, user models.User) (models.User, error) {
	args := m.Called(ctx, userID, user)
	var updated models.User
	if val := args.Get(0); val != nil {
		updated = val.(models.User)
	}
	return updated, args.Error(1)
}

func (m *BackendMock) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *BackendMock) Content(ctx context.Context) ([]models.ContentItem, error) {
	args := m.Called(ctx)
	var items []models.ContentItem
	if val := args.Get(0); val != nil {
		items = val.([]models.ContentItem)
	}
	return items, args.Error(1)
}

func (m *BackendMock) CreateContent(ctx context.Context, item models.ContentItem) (models.ContentItem, error) {
	args := m.Called(ctx, item)
	var created models.ContentItem
	if val := args.Get(0); val != nil {
		created = val.(models.ContentItem)
	}
	return created, args.Error(1)
}

func (m *BackendMock) UpdateContent(ctx context.Context, contentID string, item models.ContentItem) (models.ContentItem, error) {
	args := m.Called(ctx, contentID, item)
	var updated models.ContentItem
	if val := args.Get(0); val != nil {
		updated = val.(models.ContentItem)
	}
	return updated, args.Error(1)
}

func (m *BackendMock) DeleteContent(ctx context.Context, contentID string) error {
	args := m.Called(ctx, contentID)
	return args.Error(0)
}

func (m *BackendMock) Stats(ctx context.Context) (models.Stats, error) {
	args := m.Called(ctx)
	var stats models.Stats
	if val := args.Get(0); val != nil {
		stats = val.(models.Stats)
	}
	return stats, args.Error(1)
}

func (m *BackendMock) ChatStats(ctx context.Context) (models.ChatStats, error) {
	args := m.Called(ctx)
	var stats models.ChatStats
	if val := args.Get(0); val != nil {
		stats = val.(models.ChatStats)
	}
	return stats, args.Error(1)
}

type SessionStoreMock struct {
	mock.Mock
}

func (m *SessionStoreMock) Create(ctx context.Context, token, adminID, nickname string) (models.Session, error) {
	args := m.Called(ctx, token, adminID, nickname)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionStoreMock) Get(ctx context.Context, token string) (models.Session, error) {
	args := m.Called(ctx, token)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionStoreMock) Touch(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *SessionStoreMock) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type DuplexMock struct {
	mock.Mock
}

func (m *DuplexMock) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *DuplexMock) JoinTopic(groupID string) error {
	args := m.Called(groupID)
	return args.Error(0)
}

func (m *DuplexMock) LeaveTopic(groupID string) error {
	args := m.Called(groupID)
	return args.Error(0)
}

func (m *DuplexMock) SendMessage(payload channel.SendPayload) error {
	args := m.Called(payload)
	return args.Error(0)
}

func (m *DuplexMock) State() models.ConnectionState {
	args := m.Called()
	return args.Get(0).(models.ConnectionState)
}

var _ chatsync.HistoryService = (*BackendMock)(nil)
var _ directory.GroupLister = (*BackendMock)(nil)
var _ chatsync.Duplex = (*DuplexMock)(nil)
var _ sessions.Store = (*SessionStoreMock)(nil)
