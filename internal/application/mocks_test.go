package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/avelloz/streampanel/internal/domain/model"
	"github.com/avelloz/streampanel/internal/domain/port/driven"
)

// stubStore is an in-memory CredentialStore with call accounting.
type stubStore struct {
	mu      sync.Mutex
	cred    *model.Credential
	now     func() time.Time
	upserts int

	profileDisplayName string
	profileImage       string
	profileCalls       int
}

var _ driven.CredentialStore = (*stubStore)(nil)

func newStubStore() *stubStore {
	return &stubStore{now: time.Now}
}

func (s *stubStore) FindOne(_ context.Context, platform string) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil || s.cred.Platform != platform {
		return nil, nil
	}
	copied := *s.cred
	return &copied, nil
}

func (s *stubStore) Upsert(_ context.Context, platform, tokenBlob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.cred == nil || s.cred.Platform != platform {
		s.cred = &model.Credential{Platform: platform}
	}
	s.cred.Token = tokenBlob
	s.cred.UpdatedAt = s.now().UTC()
	return nil
}

func (s *stubStore) UpdateProfile(_ context.Context, platform, displayName, profileImage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileCalls++
	if s.cred == nil || s.cred.Platform != platform {
		return driven.ErrNotAuthenticated
	}
	s.profileDisplayName = displayName
	s.profileImage = profileImage
	return nil
}

func (s *stubStore) Delete(_ context.Context, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred != nil && s.cred.Platform == platform {
		s.cred = nil
	}
	return nil
}

func (s *stubStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}

func (s *stubStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *stubStore) credential() *model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	copied := *s.cred
	return &copied
}

// stubIdentity is a scripted IdentityProvider.
type stubIdentity struct {
	mu sync.Mutex

	authURL string
	authErr error

	startResp  *model.DeviceAuthorization
	startErr   error
	startCalls int

	pollResults []*model.DevicePollResult
	pollErr     error
	pollCalls   int

	refreshGrant *model.TokenGrant
	refreshErr   error
	refreshCalls int

	exchangeGrant *model.TokenGrant
	exchangeErr   error
	exchangeCalls int
}

var _ driven.IdentityProvider = (*stubIdentity)(nil)

func (s *stubIdentity) AuthCodeURL(string) (string, error) {
	return s.authURL, s.authErr
}

func (s *stubIdentity) StartDeviceAuthorization(context.Context) (*model.DeviceAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	return s.startResp, s.startErr
}

func (s *stubIdentity) PollDeviceCode(context.Context, string) (*model.DevicePollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollErr != nil {
		return nil, s.pollErr
	}
	idx := s.pollCalls
	s.pollCalls++
	if idx >= len(s.pollResults) {
		idx = len(s.pollResults) - 1
	}
	return s.pollResults[idx], nil
}

func (s *stubIdentity) RefreshToken(context.Context, string) (*model.TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	return s.refreshGrant, s.refreshErr
}

func (s *stubIdentity) ExchangeCode(context.Context, string, string) (*model.TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchangeCalls++
	return s.exchangeGrant, s.exchangeErr
}

func (s *stubIdentity) refreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// stubAPI is a scripted StreamingAPI.
type stubAPI struct {
	mu sync.Mutex

	user    *model.UserProfile
	userErr error

	channel    *model.ChannelInfo
	channelErr error

	modifyErr    error
	lastUpdate   model.ChannelUpdate
	modifyCalls  int
	searchResult []model.Category
	searchErr    error
	searchCalls  int

	followers    int
	followersErr error

	stream    *model.Stream
	streamErr error

	userCalls int
}

var _ driven.StreamingAPI = (*stubAPI)(nil)

func (s *stubAPI) CurrentUser(context.Context, string) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userCalls++
	return s.user, s.userErr
}

func (s *stubAPI) Channel(context.Context, string, string) (*model.ChannelInfo, error) {
	return s.channel, s.channelErr
}

func (s *stubAPI) ModifyChannel(_ context.Context, _, _ string, upd model.ChannelUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifyCalls++
	s.lastUpdate = upd
	return s.modifyErr
}

func (s *stubAPI) SearchCategories(context.Context, string, string) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	return s.searchResult, s.searchErr
}

func (s *stubAPI) FollowerTotal(context.Context, string, string) (int, error) {
	return s.followers, s.followersErr
}

func (s *stubAPI) Stream(context.Context, string, string) (*model.Stream, error) {
	return s.stream, s.streamErr
}
