package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "taskservice/internal/errors"
	"taskservice/internal/logging"
	"taskservice/internal/model"
)

// MockUserFinder is a mock implementation of UserFinder.
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func newResolver(users UserFinder, kv *memoryKV) *IdentityResolver {
	return NewIdentityResolver(users, NewIdentityCache(kv, time.Minute), logging.Discard())
}

func TestIdentityResolver_Resolve(t *testing.T) {
	userID := uuid.New()
	user := &model.User{ID: userID, Email: "u@test.com", PasswordHash: "hash"}

	tests := []struct {
		name        string
		claims      *Claims
		setupMock   func(*MockUserFinder)
		setupCache  func(*memoryKV)
		expected    *model.Identity
		expectedErr error
	}{
		{
			name:        "nil claims",
			claims:      nil,
			setupMock:   func(m *MockUserFinder) {},
			expectedErr: apperrors.ErrUnauthenticated,
		},
		{
			name:        "claims without id",
			claims:      &Claims{Email: "u@test.com"},
			setupMock:   func(m *MockUserFinder) {},
			expectedErr: apperrors.ErrUnauthenticated,
		},
		{
			name:   "cache hit skips the store",
			claims: &Claims{UserID: userID.String()},
			setupCache: func(kv *memoryKV) {
				kv.data["user:"+userID.String()] = []byte(`{"id":"` + userID.String() + `","email":"cached@test.com"}`)
			},
			setupMock: func(m *MockUserFinder) {},
			expected:  &model.Identity{ID: userID.String(), Email: "cached@test.com"},
		},
		{
			name:   "cache miss falls back to the store",
			claims: &Claims{UserID: userID.String()},
			setupMock: func(m *MockUserFinder) {
				m.On("FindByID", mock.Anything, userID).Return(user, nil).Once()
			},
			expected: &model.Identity{ID: userID.String(), Email: "u@test.com"},
		},
		{
			name:   "cache read failure falls back to the store",
			claims: &Claims{UserID: userID.String()},
			setupCache: func(kv *memoryKV) {
				kv.getErr = errors.New("connection reset")
			},
			setupMock: func(m *MockUserFinder) {
				m.On("FindByID", mock.Anything, userID).Return(user, nil).Once()
			},
			expected: &model.Identity{ID: userID.String(), Email: "u@test.com"},
		},
		{
			name:   "cache write failure does not fail the request",
			claims: &Claims{UserID: userID.String()},
			setupCache: func(kv *memoryKV) {
				kv.setErr = errors.New("READONLY")
			},
			setupMock: func(m *MockUserFinder) {
				m.On("FindByID", mock.Anything, userID).Return(user, nil).Once()
			},
			expected: &model.Identity{ID: userID.String(), Email: "u@test.com"},
		},
		{
			name:        "malformed id",
			claims:      &Claims{UserID: "not-a-uuid"},
			setupMock:   func(m *MockUserFinder) {},
			expectedErr: apperrors.ErrUnauthenticated,
		},
		{
			name:   "unknown user",
			claims: &Claims{UserID: userID.String()},
			setupMock: func(m *MockUserFinder) {
				m.On("FindByID", mock.Anything, userID).Return(nil, apperrors.ErrNotFound).Once()
			},
			expectedErr: apperrors.ErrUnauthenticated,
		},
		{
			name:   "store failure",
			claims: &Claims{UserID: userID.String()},
			setupMock: func(m *MockUserFinder) {
				m.On("FindByID", mock.Anything, userID).Return(nil, errors.New("dial tcp: refused")).Once()
			},
			expectedErr: apperrors.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserFinder)
			tt.setupMock(users)
			kv := newMemoryKV()
			if tt.setupCache != nil {
				tt.setupCache(kv)
			}

			resolver := newResolver(users, kv)
			identity, err := resolver.Resolve(context.Background(), tt.claims)
			resolver.Wait()

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, identity)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, identity)
			}
			users.AssertExpectations(t)
		})
	}
}

func TestIdentityResolver_RepopulatesCache(t *testing.T) {
	userID := uuid.New()
	users := new(MockUserFinder)
	users.On("FindByID", mock.Anything, userID).
		Return(&model.User{ID: userID, Email: "u@test.com"}, nil).Once()
	kv := newMemoryKV()
	resolver := newResolver(users, kv)
	claims := &Claims{UserID: userID.String()}

	first, err := resolver.Resolve(context.Background(), claims)
	require.NoError(t, err)
	resolver.Wait()
	assert.Equal(t, 1, kv.setCount())

	second, err := resolver.Resolve(context.Background(), claims)
	require.NoError(t, err)
	resolver.Wait()

	assert.Equal(t, first, second)
	users.AssertNumberOfCalls(t, "FindByID", 1)
	assert.Equal(t, 1, kv.setCount())
}

func TestIdentityResolver_CacheWriteOutlivesRequest(t *testing.T) {
	userID := uuid.New()
	users := new(MockUserFinder)
	users.On("FindByID", mock.Anything, userID).
		Return(&model.User{ID: userID, Email: "u@test.com"}, nil).Once()
	kv := newMemoryKV()
	resolver := newResolver(users, kv)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := resolver.Resolve(ctx, &Claims{UserID: userID.String()})
	cancel()
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return kv.setCount() == 1 }, time.Second, 10*time.Millisecond)
}
